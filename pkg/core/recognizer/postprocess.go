package recognizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/siongui/gojianfan"

	"github.com/angelospk/animatch/pkg/core/batch"
	"github.com/angelospk/animatch/pkg/core/cleaner"
	"github.com/angelospk/animatch/pkg/core/patterns"
	"github.com/angelospk/animatch/pkg/core/tags"
	"github.com/angelospk/animatch/pkg/core/trace"
)

var (
	groupEpRescue = regexp2.MustCompile(`^(\d+)(?:[_\-\s]|$)`, 0)
	anyBracket    = regexp2.MustCompile(`[\[【]([^\]】]+)[\]】]`, 0)
	ovaShape      = regexp2.MustCompile(`(?i)^(OVA|OAD|SP|SPECIALS?|MOVIE|NCOP|NCED|MENU|PV)\d*$`, 0)
	epRangeShape  = regexp2.MustCompile(`^\d{1,4}(?:\.\d)?\s*[-~]\s*\d{1,4}(?:\.\d)?$`, 0)
	ordinalShape  = regexp2.MustCompile(`(?i)^\d+(st|nd|rd|th)$`, 0)
	resLikeShape  = regexp2.MustCompile(`^\d{3,4}[pPXx]?$`, 0)
	cjkAny        = regexp2.MustCompile(`[一-龥぀-ゟ゠-ヿ]`, 0)
	alnumCJK      = regexp2.MustCompile(`[a-zA-Z0-9一-龥぀-ゟ゠-ヿ]`, 0)
)

// invalidTitles are tokens that sometimes survive as the whole "title"
// after an aggressive parse; any of them means the real title is
// hiding elsewhere in the name.
var invalidTitles = map[string]bool{
	"MOVIE": true, "OVA": true, "ONA": true, "TV": true, "BD": true,
	"DVD": true, "SP": true, "SPECIAL": true, "SPECIALS": true,
	"OAD": true, "MP4": true, "MKV": true, "BIG5": true, "GB": true,
	"CHS": true, "CHT": true, "JAP": true, "ENG": true,
}

// finalize reconciles the parser output with the shielded record and
// resolves episode, title, specs and media type.
func finalize(rec *Record, parse ParseResult, inputName string, forced *ForcedMeta, opts Options, tr *trace.Trace) {
	resolveEpisode(rec, parse, inputName, tr)

	if !rec.HasSeason && parse.Season > 0 {
		rec.Season = parse.Season
		rec.HasSeason = true
		tr.Log("[post] season from parser: S%d", parse.Season)
	}

	// A collection keyword lets a range displace an episode the parser
	// already locked: go-ptn reads "01-12" as episode 12.
	probeBatch := opts.BatchEnhancement && !rec.IsBatch &&
		(!rec.HasEpisode || (!forced.HasEpisode && hasBatchKeyword(inputName)))
	if probeBatch {
		if r, blogs := batch.AnalyzeFilename(inputName); r != nil {
			if rec.HasEpisode {
				blogs = append(blogs, fmt.Sprintf("[batch] single episode %s displaced by collection range", formatEpisode(rec.Episode)))
			}
			rec.Episode = r.Start
			rec.EndEpisode = r.End
			rec.HasEpisode = true
			rec.IsBatch = true
			if rec.Type == MediaTypeMovie && !forced.HasType {
				rec.Type = MediaTypeTV
			}
			if !rec.HasSeason {
				rec.Season = 1
				rec.HasSeason = true
				rec.SeasonDefaulted = true
			}
			tr.Section("batch enhancement", blogs)
		}
	}

	resolveTitle(rec, parse, inputName, opts, tr)
	syncSpecs(rec, parse, inputName, tr)
	resolveType(rec, forced, tr)
}

// resolveEpisode settles the episode number from, in order: forced
// meta, the parser (including multi-number conflicts), a number hiding
// in the parsed release group, and the builtin extractor.
func resolveEpisode(rec *Record, parse ParseResult, inputName string, tr *trace.Trace) {
	var logs []string
	defer func() {
		if len(logs) > 0 {
			tr.Section("episode", logs)
		}
	}()

	if !rec.HasEpisode && len(parse.Episodes) >= 2 {
		first := parse.Episodes[0]
		last := parse.Episodes[len(parse.Episodes)-1]
		if first < last && last-first < 300 && first < 500 &&
			(parse.RangeHint || hasBatchKeyword(inputName)) {
			rec.Episode = first
			rec.EndEpisode = last
			rec.HasEpisode = true
			rec.IsBatch = true
			logs = append(logs, fmt.Sprintf("[post] episode range: %s-%s", formatEpisode(first), formatEpisode(last)))
		} else {
			// Conflicting numbers without collection evidence: trust
			// the first one, vetted against the name.
			setValidatedEpisode(rec, first, rec.ProcessedName, &logs)
		}
	} else if !rec.HasEpisode && len(parse.Episodes) == 1 {
		setValidatedEpisode(rec, parse.Episodes[0], rec.ProcessedName, &logs)
	}

	// A bare number parsed as the "group" is usually the episode of a
	// bracket-style name ([Title][01][1080p]).
	if !rec.HasEpisode && parse.ReleaseGroup != "" {
		if m := patterns.FindMatch(groupEpRescue, parse.ReleaseGroup); m != nil {
			raw := patterns.Group(m, 1)
			if v, vlogs := tags.ValidateEpisode(raw, inputName); v > 0 {
				rec.Episode = float64(v)
				rec.HasEpisode = true
				logs = append(logs, vlogs...)
				logs = append(logs, fmt.Sprintf("[post] episode rescued from group token: %s", raw))
			}
		}
	}

	if !rec.HasEpisode {
		if v, vlogs := tags.ExtractEpisode(rec.ProcessedName, rec.ProcessedName); v > 0 {
			rec.Episode = float64(v)
			rec.HasEpisode = true
			logs = append(logs, vlogs...)
		}
	}

	// Last resort: the untouched input. Shielding can eat the marker
	// the episode was hanging on (" - 01" loses its dash, brackets get
	// swept with their noise).
	if !rec.HasEpisode {
		if v, vlogs := tags.ExtractEpisode(inputName, inputName); v > 0 {
			rec.Episode = float64(v)
			rec.HasEpisode = true
			logs = append(logs, vlogs...)
			logs = append(logs, "[post] episode recovered from raw name")
		}
	}
}

func setValidatedEpisode(rec *Record, ep float64, context string, logs *[]string) {
	if ep != float64(int64(ep)) {
		// Half-numbered specials never collide with codec tokens.
		rec.Episode = ep
		rec.HasEpisode = true
		*logs = append(*logs, fmt.Sprintf("[post] episode: E%s", formatEpisode(ep)))
		return
	}
	if v, vlogs := tags.ValidateEpisode(strconv.Itoa(int(ep)), context); v > 0 {
		rec.Episode = float64(v)
		rec.HasEpisode = true
		*logs = append(*logs, vlogs...)
	} else {
		*logs = append(*logs, vlogs...)
	}
}

func hasBatchKeyword(name string) bool {
	for _, kw := range batch.BatchKeywords {
		if strings.Contains(strings.ToUpper(name), strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

// resolveTitle turns the parser title (or a rescued bracket block)
// into the final cn/en name pair.
func resolveTitle(rec *Record, parse ParseResult, inputName string, opts Options, tr *trace.Trace) {
	var logs []string
	defer func() {
		if len(logs) > 0 {
			tr.Section("title", logs)
		}
	}()

	if opts.Fingerprint != nil && rec.PrivilegedTitle == "" {
		rec.CNName = opts.Fingerprint.Title
		rec.OriginalCNName = opts.Fingerprint.Title
		rec.ENName = opts.Fingerprint.OriginalTitle
		logs = append(logs, "[post] fingerprint titles applied, split skipped")
		return
	}

	rawName := rec.PrivilegedTitle
	if rawName == "" {
		rawName = parse.Title
	}
	if rawName == "" {
		rawName = strings.SplitN(rec.ProcessedName, ".", 2)[0]
	}
	rawName = strings.TrimSpace(rawName)

	if rec.ReleaseGroup != "" {
		rawName = removeToken(rawName, rec.ReleaseGroup)
	}
	rawName = purgeCustomGroups(rawName, opts.CustomGroups)

	if titleLooksInvalid(rawName) {
		if rescue := rescueTitleFromBrackets(inputName, rec, opts); rescue != "" {
			logs = append(logs, fmt.Sprintf("[post] title rescued from bracket: %s", rescue))
			rawName = rescue
		}
	}

	residual := rawName
	if rec.PrivilegedTitle == "" {
		var rlogs []string
		residual, rlogs = cleaner.ResidualClean(rawName, rec.Year, int(rec.Episode))
		logs = append(logs, rlogs...)
	}

	cn, cnOrig, en, slogs := cleaner.SplitDualTitle(residual, rec.IsBatch)
	logs = append(logs, slogs...)
	rec.CNName = cn
	rec.OriginalCNName = cnOrig
	rec.ENName = en
	if cn == "" && en == "" && strings.TrimSpace(residual) != "" {
		rec.ENName = strings.TrimSpace(residual)
		logs = append(logs, fmt.Sprintf("[post] residual kept as en name: %s", rec.ENName))
	}
}

// removeToken erases a known token from a title with loose boundaries.
func removeToken(s, token string) string {
	re, err := patterns.Compile(`(?<![` + boundaryChars + `])` + regexp2.Escape(token) + `(?![` + boundaryChars + `])`)
	if err != nil {
		return s
	}
	return collapseSpaces(patterns.EraseAll(re, s))
}

// purgeCustomGroups erases custom group names (and their simplified/
// traditional variants) from a title, absorbing the joint-release
// separators around each hit.
func purgeCustomGroups(s string, groups []string) string {
	for _, raw := range groups {
		g := strings.TrimSpace(patterns.ReplaceAll(groupSourceTag, raw, ""))
		if g == "" || strings.HasPrefix(g, "#") {
			continue
		}
		for _, v := range groupVariants(g) {
			re, err := patterns.Compile(`(?<![` + boundaryChars + `])([&xX\+\s\-_/]*` + v + `[&xX\+\s\-_/]*)(?![` + boundaryChars + `])`)
			if err != nil {
				continue
			}
			s = patterns.EraseAll(re, s)
		}
	}
	return collapseSpaces(s)
}

func titleLooksInvalid(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return true
	}
	core := collectCoreRunes(title)
	if len([]rune(core)) < 2 {
		return true
	}
	upper := strings.ToUpper(title)
	if invalidTitles[upper] {
		return true
	}
	return patterns.Match(resLikeShape, title) || patterns.Match(ordinalShape, title)
}

func collectCoreRunes(s string) string {
	var b strings.Builder
	for _, m := range patterns.FindAllMatches(alnumCJK, s) {
		b.WriteString(m.String())
	}
	return b.String()
}

// rescueTitleFromBrackets trawls the original input's brackets for a
// plausible title when the parse produced garbage. Chinese-bearing
// candidates win over latin ones.
func rescueTitleFromBrackets(inputName string, rec *Record, opts Options) string {
	var latin string
	for _, m := range patterns.FindAllMatches(anyBracket, inputName) {
		cand := strings.TrimSpace(patterns.Group(m, 1))
		if cand == "" || len([]rune(collectCoreRunes(cand))) < 2 {
			continue
		}
		if cand == rec.ReleaseGroup || invalidTitles[strings.ToUpper(cand)] {
			continue
		}
		if patterns.Match(ovaShape, cand) || patterns.Match(epRangeShape, cand) ||
			patterns.Match(resLikeShape, cand) || patterns.Match(bracketEpisode, cand) {
			continue
		}
		if fullMatch(patterns.Resolution, cand) || fullMatch(patterns.SourceMedium, cand) ||
			fullMatch(patterns.VideoCodec, cand) || fullMatch(patterns.AudioCodec, cand) {
			continue
		}
		if isCustomGroup(cand, opts.CustomGroups) || isNoiseToken(cand) {
			continue
		}
		if patterns.Match(patterns.GroupKeywords, cand) && !patterns.Match(cjkTitleHint, cand) {
			continue
		}
		if patterns.Match(cjkAny, cand) {
			return cand
		}
		if latin == "" {
			latin = cand
		}
	}
	return latin
}

// cjkTitleHint: a bracket with a group morpheme can still be a title
// when it reads like a sentence (e.g. 工作细胞), so require more than
// just the morpheme before rejecting.
var cjkTitleHint = regexp2.MustCompile(`[一-龥]{4,}`, 0)

func isCustomGroup(cand string, groups []string) bool {
	for _, raw := range groups {
		g := strings.TrimSpace(patterns.ReplaceAll(groupSourceTag, raw, ""))
		if g == "" {
			continue
		}
		if strings.EqualFold(cand, g) || strings.EqualFold(cand, gojianfan.T2S(g)) || strings.EqualFold(cand, gojianfan.S2T(g)) {
			return true
		}
	}
	return false
}

// syncSpecs fills any spec field the shielding pass missed, preferring
// a fresh extraction from the untouched input over the parser's view.
func syncSpecs(rec *Record, parse ParseResult, inputName string, tr *trace.Trace) {
	var logs []string
	defer func() {
		if len(logs) > 0 {
			tr.Section("spec sync", logs)
		}
	}()

	if rec.Resolution == "" {
		if v, l := tags.ExtractResolution(inputName); v != "" {
			rec.Resolution = v
			logs = append(logs, l...)
		} else if parse.Resolution != "" {
			rec.Resolution = parse.Resolution
			logs = append(logs, fmt.Sprintf("[post] resolution from parser: %s", parse.Resolution))
		}
	}
	if rec.Source == "" {
		if v, l := tags.ExtractSource(inputName); v != "" {
			rec.Source = v
			logs = append(logs, l...)
		} else if v, _ := tags.ExtractSource(parse.Source); v != "" {
			rec.Source = v
			logs = append(logs, fmt.Sprintf("[post] source from parser: %s", v))
		}
	}
	if rec.VideoCodec == "" {
		if v, l := tags.ExtractVideoCodec(inputName); v != "" {
			rec.VideoCodec = v
			logs = append(logs, l...)
		} else if v, _ := tags.ExtractVideoCodec(parse.VideoCodec); v != "" {
			rec.VideoCodec = v
		}
	}
	if rec.AudioCodec == "" {
		if v, l := tags.ExtractAudioCodec(inputName); v != "" {
			rec.AudioCodec = v
			logs = append(logs, l...)
		} else if v, _ := tags.ExtractAudioCodec(parse.AudioCodec); v != "" {
			rec.AudioCodec = v
		}
	}
	if rec.DynamicRange == "" {
		if v, l := tags.ExtractDynamicRange(inputName); v != "" {
			rec.DynamicRange = v
			logs = append(logs, l...)
		}
	}
	if rec.ReleaseGroup == "" {
		if g, l := tags.ExtractReleaseGroup(inputName, parse.ReleaseGroup); g != "" {
			rec.ReleaseGroup = g
			logs = append(logs, l...)
		}
	}
	// Technical tokens never survive as a team name.
	if rec.ReleaseGroup != "" && patterns.Match(patterns.NotGroupExact, rec.ReleaseGroup) {
		rec.ReleaseGroup = ""
	}
}

// resolveType settles movie vs tv. A season or episode means tv; a
// four-digit "episode" is a mistaken year and flips the record back to
// movie. Forced type always wins.
func resolveType(rec *Record, forced *ForcedMeta, tr *trace.Trace) {
	var logs []string
	defer func() {
		if len(logs) > 0 {
			tr.Section("media type", logs)
		}
	}()

	if rec.HasEpisode && !rec.IsBatch && rec.Episode > 1900 && !forced.HasEpisode {
		if rec.Year == "" {
			rec.Year = formatEpisode(rec.Episode)
		}
		rec.Episode = 0
		rec.HasEpisode = false
		logs = append(logs, "[post] four-digit episode treated as year")
	}

	if !forced.HasType {
		switch {
		case rec.HasSeason || rec.HasEpisode:
			rec.Type = MediaTypeTV
		case rec.Type == MediaTypeUnknown:
			rec.Type = MediaTypeMovie
		}
	}
	if rec.Type == MediaTypeTV && !rec.HasSeason {
		rec.Season = 1
		rec.HasSeason = true
		rec.SeasonDefaulted = true
	}
	logs = append(logs, fmt.Sprintf("[post] type: %s", rec.Type))
}
