// Package patterns holds the shared pattern library for release-name
// recognition. Word boundaries are expressed with lookarounds instead of
// \b so that underscores, dots and brackets all count as separators
// (VCB-Studio style naming), which is why these are regexp2 patterns
// rather than stdlib regexp.
package patterns

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// Technical spec patterns. Group 1 carries the significant token.
var (
	// Resolution tokens: 1080p, 4K, 1920x1080.
	Resolution = regexp2.MustCompile(`(?i)(?<![a-zA-Z0-9])((\d{3,4}[Pp])|([248][Kk])|(\d{3,4}[xX]\d{3,4}))(?![a-zA-Z0-9])`, 0)

	// Video codec tokens.
	VideoCodec = regexp2.MustCompile(`(?i)(?<![a-zA-Z0-9])(H\.?26[45]|[Xx]26[45]|AVC|HEVC|VC[0-9]?|MPEG[0-9]?|Xvid|DivX|AV1)(?![a-zA-Z0-9])`, 0)

	// Audio codec (group 1) with an optional channel layout (group 2).
	AudioCodec = regexp2.MustCompile(`(?i)(?<![a-zA-Z0-9])(DTS-?HD(?:\.MA|[-\s]MA)?|DTS(?:\.MA|[-\s]MA)?|Atmos|TrueHD|AC-?3|DDP|DD\+|DD|AAC|FLAC|Vorbis|Opus|E-?AC-?3|LPCM|PCM)(?:(?:(?:\s*|\.|_|-)(?=[0-9]))?([0-9]\.[0-9](?:\+[0-9]\.[0-9])?|[0-9]ch))?(?![a-zA-Z0-9])`, 0)

	// Source medium tokens.
	SourceMedium = regexp2.MustCompile(`(?i)(?<![a-zA-Z0-9])(WEB-DL|WEBRIP|WEB-RIP|BDRIP|DVDRIP|HDRip|BLURAY|UHDTV|HDTV|HDDVD|REMUX|UHD|Pdtv|Dvdscr|BLU|WEB|BD)(?![a-zA-Z0-9])`, 0)

	// Dynamic range tokens, split out from the generic effect tags.
	DynamicRange = regexp2.MustCompile(`(?i)(?<![a-zA-Z0-9])(HDR10\+|HDR10|HDR|HLG|Dolby\s*Vision|DoVi|DV|SDR|IMAX)(?![a-zA-Z0-9])`, 0)

	// Remaining version/effect tags.
	Effect = regexp2.MustCompile(`(?i)(?<![a-zA-Z0-9])(3D|REPACK|HQ|Remastered|Extended|Uncut|Internal|Pro|Proper)(?![a-zA-Z0-9])`, 0)

	// Streaming platform tokens, with an optional leading dash.
	Platform = regexp2.MustCompile(`(?i)(?:-)?(?<![a-zA-Z0-9])(Baha|Bilibili|Netflix|NF|Amazon|AMZN|DSNP|Crunchyroll|CR|Hulu|HBO|YouTube|YT|playWEB|B-Global|friDay|LINETV|KKTV|ATVP|IQ|CRAMZN|iT|ABEMA)(?![a-zA-Z0-9])|(?:-)?(?<![a-zA-Z0-9])(Disney\+|AppleTV\+)`, 0)

	// Subtitle markers used for title shielding, tolerant of spacing
	// and fragments so blocks like [简日 字幕] or [CHS_CHT] are caught.
	Subtitle = regexp2.MustCompile("(?i)(?<![一-龥])([简繁中日英双雙多]{1,}[体文语語\\s]*[内內外\\s]*[嵌封挂掛\\s]*字幕?|[简繁中日英双雙多]{1,}[体文语語\\s]*[双雙]语|[简繁中日英双雙多]{1,}\\s*字幕|CHS|CHT|JPSC|JP_SC|BIG5|GB)(?![一-龥])", 0)
)

// NoiseWords are deep-noise patterns erased from titles before and
// after the external parser runs.
var NoiseWords = compileAll([]string{
	`(?i)PTS|JADE|AOD|CHC|(?!LINETV)[A-Z]{1,4}TV[-0-9UVHDK]*`,
	`(?i)[0-9]{1,2}th|[0-9]{1,2}bit|IMAX|BBC|XXX|DC$`,
	`(?i)Ma10p|Hi10p|Hi10|Ma10|10bit|8bit`,
	`连载|新番|合集|招募翻译|版本|出品|台版|港版|搬运|搬運|[a-zA-Z0-9]+字幕组|[a-zA-Z0-9]+字幕社|[★☆]*[0-9]{1,2}月新番[★☆]*`,
	`(?i)UNCUT|UNRATE|WITH EXTRAS|RERIP|SUBBED|PROPER|REPACK|Complete|Extended|Version|10bit`,
	`CD[ ]*[1-9]|DVD[ ]*[1-9]|DISK[ ]*[1-9]|DISC[ ]*[1-9]|[ ]+GB`,
	`(?i)YYeTs|人人影视|弯弯字幕组`,
	`(?i)\b[简繁中日英双雙多]+[体文语語]+[ ]*(MP4|MKV|AVC|HEVC|AAC|ASS|SRT)*\b`,
})

// notGroupsAlternation is the blocklist of technical tokens that must
// never be accepted as a release group name.
const notGroupsAlternation = `1080P|720P|4K|2160P|H264|H265|X264|X265|AVC|HEVC|AAC|DTS|AC3|DDP|ATMOS|WEB-DL|WEBRIP|BLURAY|BD|HD|HDR|SDR|DV|TRUEHD|HIRES|10BIT|EAC3|UHD 4K|Ma10p|Hi10p|Hi10|Ma10|REMUX`

// NotGroupExact matches when an entire candidate equals a forbidden
// technical token.
var NotGroupExact = regexp2.MustCompile(`(?i)^(`+notGroupsAlternation+`)$`, 0)

// NotGroupContains reports whether the upper-cased candidate appears
// anywhere inside the forbidden-token list. This is a deliberately
// loose membership test used when vetting parser-supplied group names.
func NotGroupContains(candidate string) bool {
	return strings.Contains(notGroupsAlternation, strings.ToUpper(candidate))
}

// GroupKeywords matches morphemes that mark a block as a fansub or
// release group name (组/社/字幕/压制/...).
var GroupKeywords = regexp2.MustCompile(`组|組|社|制作|製作|字幕|工作|家族|学园|學園|压制|壓制|发布|發佈|协会|協會|联盟|聯盟|论坛|論壇|中心|屋|团|團|亭|园|園`, 0)

// EpisodePatterns are tried in order; group 1 is the episode number.
var EpisodePatterns = compileAll([]string{
	`(?i)EP?([0-9]{2,4})`,
	`(?i)DR([0-9]{2,4})`,
	`第[ ]*([0-9]{1,4})[ ]*[集话話期幕]`,
	`[[]([0-9]{1,4})[]]`,
	`[ ]+-[ ]+([0-9]{1,4})`,
})

// SeasonPatterns are tried in order; group 1 is the season number,
// possibly in Chinese numerals.
var SeasonPatterns = compileAll([]string{
	`(?i)S([0-9]{1,2})`,
	`第([一二三四五六七八九十0-9]+)季`,
	`Season[ ]*([0-9]+)`,
	`(?i)\b([0-9]{1,2})(?:st|nd|rd|th)\b(?:\s*Season)?`,
})

func compileAll(raw []string) []*regexp2.Regexp {
	out := make([]*regexp2.Regexp, 0, len(raw))
	for _, p := range raw {
		out = append(out, regexp2.MustCompile(p, 0))
	}
	return out
}

// Compile builds a case-insensitive pattern at runtime. Operator rules
// arrive as free-form regex text, so errors are returned, not panicked.
func Compile(pattern string) (*regexp2.Regexp, error) {
	return regexp2.Compile(pattern, regexp2.IgnoreCase)
}

// Match reports whether re matches s. Engine errors count as no match.
func Match(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

// Find returns the first full match of re in s.
func Find(re *regexp2.Regexp, s string) (string, bool) {
	m, err := re.FindStringMatch(s)
	if err != nil || m == nil {
		return "", false
	}
	return m.String(), true
}

// FindMatch returns the first match object of re in s, or nil.
func FindMatch(re *regexp2.Regexp, s string) *regexp2.Match {
	m, err := re.FindStringMatch(s)
	if err != nil {
		return nil
	}
	return m
}

// FindAllMatches returns every match of re in s in order.
func FindAllMatches(re *regexp2.Regexp, s string) []*regexp2.Match {
	var out []*regexp2.Match
	m, err := re.FindStringMatch(s)
	for err == nil && m != nil {
		out = append(out, m)
		m, err = re.FindNextMatch(m)
	}
	return out
}

// FindAllGroup1 returns group 1 of every match, falling back to the
// full match text when the group did not participate.
func FindAllGroup1(re *regexp2.Regexp, s string) []string {
	var out []string
	for _, m := range FindAllMatches(re, s) {
		if g := m.GroupByNumber(1); g != nil && len(g.Captures) > 0 {
			out = append(out, g.String())
			continue
		}
		out = append(out, m.String())
	}
	return out
}

// Group returns capture group n of m, or "" when absent.
func Group(m *regexp2.Match, n int) string {
	if m == nil {
		return ""
	}
	g := m.GroupByNumber(n)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

// ReplaceAll substitutes every match of re in s with repl. On engine
// error the input is returned unchanged.
func ReplaceAll(re *regexp2.Regexp, s, repl string) string {
	out, err := re.Replace(s, repl, -1, -1)
	if err != nil {
		return s
	}
	return out
}

// EraseAll blanks every match of re in s with a single space.
func EraseAll(re *regexp2.Regexp, s string) string {
	return ReplaceAll(re, s, " ")
}
