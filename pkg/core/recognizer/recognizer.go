package recognizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/siongui/gojianfan"

	"github.com/angelospk/animatch/pkg/core/batch"
	"github.com/angelospk/animatch/pkg/core/cleaner"
	"github.com/angelospk/animatch/pkg/core/patterns"
	"github.com/angelospk/animatch/pkg/core/tags"
	"github.com/angelospk/animatch/pkg/core/trace"
)

// Fingerprint is a remembered title pair for a filename shape the
// operator has already confirmed; when present the title-splitting
// stage is skipped entirely.
type Fingerprint struct {
	Title         string
	OriginalTitle string
}

// Options tune one recognition run.
type Options struct {
	// CustomWords are operator pre-clean rules (substitution, offset,
	// forced meta, suppression).
	CustomWords []string
	// CustomGroups are known release-group names, scanned anywhere in
	// the name so mid-name groups and joint releases are shielded.
	CustomGroups []string
	// SpecialRules are privileged per-shape extraction rules.
	SpecialRules []batch.SpecialRule
	// BatchEnhancement enables collection-range probing when no single
	// episode was found.
	BatchEnhancement bool
	// ForceFilename treats the whole input as one filename even when
	// it contains path separators.
	ForceFilename bool
	// BracketGroupFirst probes the leading bracket for a release group
	// before the custom-group scan runs.
	BracketGroupFirst bool
	// Fingerprint short-circuits title extraction with remembered names.
	Fingerprint *Fingerprint
	// Parser overrides the external parser stage; nil means go-ptn.
	Parser NameParser
}

func (o *Options) parser() NameParser {
	if o.Parser != nil {
		return o.Parser
	}
	return PTNParser{}
}

// Recognize runs the staged pipeline over one filename. It never
// fails: a hostile name yields a sparse record and a trace explaining
// what each stage did.
func Recognize(inputName string, opts Options) (*Record, *trace.Trace) {
	tr := trace.New()
	rec := &Record{Type: MediaTypeUnknown}

	// STEP 1: operator pre-clean and forced meta.
	processed, forcedRaw, logs := cleaner.PreClean(inputName, opts.CustomWords, opts.ForceFilename)
	tr.Section("pre-clean", logs)

	var forced ForcedMeta
	for _, key := range sortedKeys(forcedRaw) {
		if err := forced.ApplyField(key, forcedRaw[key]); err != nil {
			tr.Log("[forced] ignored: %v", err)
			continue
		}
		tr.Log("[forced] %s = %s", key, forcedRaw[key])
	}
	forced.applyTo(rec)

	// STEP 1.5: privileged special rules run on the untouched input so
	// operator patterns see the exact shape they were written against.
	if sres, slogs := batch.ExtractSpecial(inputName, opts.SpecialRules); sres != nil {
		rec.PrivilegedTitle = sres.Title
		if sres.Group != "" && rec.ReleaseGroup == "" {
			rec.ReleaseGroup = sres.Group
		}
		if sres.HasEpisode && !rec.HasEpisode {
			rec.Episode = float64(sres.Episode)
			rec.HasEpisode = true
		}
		tr.Section("privileged rules", slogs)
	}

	// STEP 2: cheap tag probes before any shielding mutates the name.
	if y, ylogs := tags.ExtractYear(processed); y != "" && rec.Year == "" {
		rec.Year = y
		tr.Section("year", ylogs)
	}
	if !forced.HasSeason {
		if s, slogs := tags.ExtractSeason(processed); s > 0 {
			rec.Season = s
			rec.HasSeason = true
			tr.Section("season", slogs)
		}
	}
	if p, plogs := tags.ExtractPlatform(inputName); p != "" {
		rec.Platform = p
		tr.Section("platform", plogs)
	}

	// STEP 2.5: shield everything that would confuse the external
	// parser — group names, technical specs, deep noise.
	if opts.BracketGroupFirst {
		processed = lockBracketGroup(processed, rec, tr)
		processed = shieldCustomGroups(processed, rec, opts.CustomGroups, tr)
	} else {
		processed = shieldCustomGroups(processed, rec, opts.CustomGroups, tr)
		processed = lockBracketGroup(processed, rec, tr)
	}
	processed = shieldLeadingGroupWord(processed, rec, tr)
	processed = shieldTechnicalSpecs(processed, rec, tr)
	processed = eraseDeepNoise(processed, tr)
	rec.ProcessedName = collapseSpaces(processed)

	if lang, llogs := tags.ExtractSubtitleLang(inputName); lang != "" {
		rec.SubtitleLang = lang
		tr.Section("subtitle language", llogs)
	}

	// STEP 3: external parser on the shielded name.
	var parse ParseResult
	if rec.ProcessedName != "" {
		parse = opts.parser().Parse(rec.ProcessedName)
		if parse.Title != "" {
			tr.Log("[parser] title: %s", parse.Title)
		}
	}

	// STEPs 4-7 live in postprocess.go.
	finalize(rec, parse, inputName, &forced, opts, tr)
	return rec, tr
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// boundaryChars are the characters that terminate a group-name token:
// latin alphanumerics, CJK ideographs and kana. Punctuation and
// brackets do not, so [Group] and Group&Other both match.
const boundaryChars = `a-zA-Z0-9一-龥぀-ゟ゠-ヿ`

var (
	groupSourceTag  = regexp2.MustCompile(`^\[(?:REMOTE|私有|社区|内置)\]`, 0)
	leadBracket     = regexp2.MustCompile(`^\s*[\[【]([^\]】]*)[\]】]`, 0)
	leadNoiseBlock  = regexp2.MustCompile(`^\s*[\[【][^\]】]*(?:搬运|搬運|新番|连载|合集|招募)[^\]】]*[\]】]`, 0)
	bracketEpisode  = regexp2.MustCompile(`^(?:TV\s*)?\d{1,4}(?:\s*[-~]\s*\d{1,4})?(?:\s*(?:Fin|END|合集|v\d))?$`, regexp2.IgnoreCase)
	groupEpsInToken = regexp2.MustCompile(`第?\d+[集话話回季]|[上下]卷`, 0)
)

// groupVariants returns the group name plus its simplified and
// traditional Chinese forms, escaped for embedding in a pattern.
func groupVariants(g string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range []string{g, gojianfan.T2S(g), gojianfan.S2T(g)} {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, regexp2.Escape(v))
	}
	return out
}

// shieldCustomGroups scans the whole name for known group names. A hit
// is expanded across joint-release separators (&, +, x) so a block
// like "GroupA&GroupB" is shielded as one unit, locked as the release
// group, and removed from the working title.
func shieldCustomGroups(processed string, rec *Record, groups []string, tr *trace.Trace) string {
	if len(groups) == 0 {
		return processed
	}
	var logs []string

	cleaned := make([]string, 0, len(groups))
	for _, raw := range groups {
		g := strings.TrimSpace(patterns.ReplaceAll(groupSourceTag, raw, ""))
		if g == "" || strings.HasPrefix(g, "#") {
			continue
		}
		cleaned = append(cleaned, g)
	}
	// Longest first so "桜都字幕组" wins over "桜都".
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len([]rune(cleaned[i])) > len([]rune(cleaned[j]))
	})

	for _, g := range cleaned {
		if patterns.Match(patterns.NotGroupExact, g) {
			continue
		}
		if m := patterns.FindMatch(patterns.Platform, g); m != nil && strings.EqualFold(m.String(), g) {
			continue
		}
		re, err := patterns.Compile(`(?<![` + boundaryChars + `])(` + strings.Join(groupVariants(g), "|") + `)(?![` + boundaryChars + `])`)
		if err != nil {
			logs = append(logs, fmt.Sprintf("[shield] bad group pattern %q", g))
			continue
		}
		m := patterns.FindMatch(re, processed)
		if m == nil {
			continue
		}

		runes := []rune(processed)
		lo, hi := expandJointBlock(runes, m.Index, m.Index+m.Length)
		block := strings.Trim(strings.TrimSpace(string(runes[lo:hi])), "&+xX× ")
		if rec.ReleaseGroup == "" && block != "" {
			rec.ReleaseGroup = block
		}
		processed = collapseSpaces(string(runes[:lo]) + " " + string(runes[hi:]))
		logs = append(logs, fmt.Sprintf("[shield] custom group locked: %s", block))
		break
	}

	if len(logs) > 0 {
		tr.Section("custom groups", logs)
	}
	return processed
}

func isJointSep(r rune) bool {
	switch r {
	case '&', '+', 'x', 'X', '×':
		return true
	}
	return false
}

func isBlockBoundary(r rune) bool {
	switch r {
	case '[', ']', '【', '】', '(', ')', '（', '）', '{', '}':
		return true
	}
	return false
}

// expandJointBlock widens [lo,hi) over joint-release separators so the
// partner groups on either side are absorbed too.
func expandJointBlock(runes []rune, lo, hi int) (int, int) {
	for {
		j := lo - 1
		for j >= 0 && runes[j] == ' ' {
			j--
		}
		if j < 0 || !isJointSep(runes[j]) {
			break
		}
		j--
		for j >= 0 && runes[j] == ' ' {
			j--
		}
		start := j
		for start >= 0 && runes[start] != ' ' && !isBlockBoundary(runes[start]) {
			start--
		}
		if start == j {
			break
		}
		lo = start + 1
	}
	for {
		j := hi
		for j < len(runes) && runes[j] == ' ' {
			j++
		}
		if j >= len(runes) || !isJointSep(runes[j]) {
			break
		}
		j++
		for j < len(runes) && runes[j] == ' ' {
			j++
		}
		end := j
		for end < len(runes) && runes[end] != ' ' && !isBlockBoundary(runes[end]) {
			end++
		}
		if end == j {
			break
		}
		hi = end
	}
	return lo, hi
}

// lockBracketGroup strips leading noise brackets and probes up to
// three leading brackets for a credible release group. The group
// bracket itself is left in place for the parser; only its name is
// locked so later stages cannot overwrite it.
func lockBracketGroup(processed string, rec *Record, tr *trace.Trace) string {
	var logs []string

	for i := 0; i < 2; i++ {
		m := patterns.FindMatch(leadNoiseBlock, processed)
		if m == nil {
			break
		}
		processed = strings.TrimSpace(strings.TrimPrefix(processed, m.String()))
		logs = append(logs, fmt.Sprintf("[shield] leading noise bracket dropped: %s", m.String()))
	}

	for i := 0; i < 3; i++ {
		m := patterns.FindMatch(leadBracket, processed)
		if m == nil {
			break
		}
		cand := strings.TrimSpace(patterns.Group(m, 1))
		switch {
		case cand == "",
			patterns.Match(bracketEpisode, cand),
			fullMatch(patterns.Resolution, cand),
			isNoiseToken(cand):
			// Not a group: drop the bracket and look at the next one.
			processed = strings.TrimSpace(processed[len(m.String()):])
			logs = append(logs, fmt.Sprintf("[shield] leading bracket skipped: [%s]", cand))
			continue
		}
		if rec.ReleaseGroup == "" && tags.IsValidGroup(cand) && !patterns.Match(patterns.NotGroupExact, cand) {
			rec.ReleaseGroup = cand
			logs = append(logs, fmt.Sprintf("[shield] bracket group locked: %s", cand))
		}
		break
	}

	if len(logs) > 0 {
		tr.Section("bracket group", logs)
	}
	return processed
}

func fullMatch(re *regexp2.Regexp, s string) bool {
	m := patterns.FindMatch(re, s)
	return m != nil && m.String() == s
}

func isNoiseToken(s string) bool {
	for _, re := range patterns.NoiseWords {
		if fullMatch(re, s) {
			return true
		}
	}
	return false
}

// shieldLeadingGroupWord handles un-bracketed fansub prefixes like
// "桜都字幕组 Title - 01": the first token is taken as the group when
// it carries a group morpheme and no episode marker.
func shieldLeadingGroupWord(processed string, rec *Record, tr *trace.Trace) string {
	trimmed := strings.TrimSpace(processed)
	if trimmed == "" || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "【") {
		return processed
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return processed
	}
	head := fields[0]
	if !patterns.Match(patterns.GroupKeywords, head) || patterns.Match(groupEpsInToken, head) {
		return processed
	}
	if rec.ReleaseGroup == "" {
		rec.ReleaseGroup = head
	}
	tr.Section("leading group word", []string{fmt.Sprintf("[shield] leading group: %s", head)})
	return strings.TrimSpace(strings.TrimPrefix(trimmed, head))
}

var emptyShell = regexp2.MustCompile(`[\[({【（][\s\-\._/]*[\])}】）]`, 0)

var noiseShield = []*regexp2.Regexp{
	regexp2.MustCompile(`(?i)\b(MKV|MP4|AVI|RMVB|WMV|MOV|WEBM|ASS|SRT|SUP|PGS)\b`, 0),
	regexp2.MustCompile(`(?i)\b(Fin|END|Complete|Final)\b`, 0),
	regexp2.MustCompile(`完结|全集|合集|合訂`, 0),
	regexp2.MustCompile(`精校|修正|修复|修復|重制|重製|内详|內詳|招募`, 0),
}

// shieldTechnicalSpecs pulls resolution, source, codec and range tags
// into the record and erases them so the parser sees only the title.
func shieldTechnicalSpecs(processed string, rec *Record, tr *trace.Trace) string {
	var logs []string

	if v, l := tags.ExtractResolution(processed); v != "" {
		rec.Resolution = v
		logs = append(logs, l...)
	}
	processed = patterns.EraseAll(patterns.Resolution, processed)

	if v, l := tags.ExtractSource(processed); v != "" {
		rec.Source = v
		logs = append(logs, l...)
	}
	processed = patterns.EraseAll(patterns.SourceMedium, processed)

	if v, l := tags.ExtractVideoCodec(processed); v != "" {
		rec.VideoCodec = v
		logs = append(logs, l...)
	}
	processed = patterns.EraseAll(patterns.VideoCodec, processed)

	if v, l := tags.ExtractAudioCodec(processed); v != "" {
		rec.AudioCodec = v
		logs = append(logs, l...)
	}
	processed = patterns.EraseAll(patterns.AudioCodec, processed)

	if v, l := tags.ExtractDynamicRange(processed); v != "" {
		rec.DynamicRange = v
		logs = append(logs, l...)
	}
	processed = patterns.EraseAll(patterns.DynamicRange, processed)

	if m := patterns.FindMatch(patterns.Effect, processed); m != nil {
		rec.VideoEffect = patterns.Group(m, 1)
		logs = append(logs, fmt.Sprintf("[shield] effect: %s", rec.VideoEffect))
	}
	processed = patterns.EraseAll(patterns.Effect, processed)

	if len(logs) > 0 {
		tr.Section("technical specs", logs)
	}
	return processed
}

// eraseDeepNoise removes subtitle markers, status words, container
// names and the deep-noise library, then sweeps empty bracket shells.
func eraseDeepNoise(processed string, tr *trace.Trace) string {
	before := processed
	processed = patterns.EraseAll(patterns.Subtitle, processed)
	for _, re := range noiseShield {
		processed = patterns.EraseAll(re, processed)
	}
	for _, re := range patterns.NoiseWords {
		processed = patterns.EraseAll(re, processed)
	}
	for i := 0; i < 2; i++ {
		processed = patterns.EraseAll(emptyShell, processed)
	}
	if processed != before {
		tr.Log("[shield] noise erased")
	}
	return processed
}
