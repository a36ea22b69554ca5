// Package tags implements the per-attribute extractors that pull
// technical specs, season/episode numbers and release-group names out
// of a release filename. Extractors never fail: an absent value is
// reported as the zero value with no trace messages.
package tags

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

// ExtractYear finds a 19xx/20xx year token.
func ExtractYear(text string) (string, []string) {
	re := regexp2.MustCompile(`\b((19|20)\d{2})\b`, 0)
	if m := patterns.FindMatch(re, text); m != nil {
		y := patterns.Group(m, 1)
		return y, []string{fmt.Sprintf("[builtin] release year: %s", y)}
	}
	return "", nil
}

var (
	romanSeasonExplicit = regexp2.MustCompile(`(?i)(?:Season|S|第)\s*([IVX]+)(?:\s*季)?\b`, 0)
	romanSeasonSuffix   = regexp2.MustCompile(`\s([IVX]+)(?=\s|\[|\(|【|（|$)`, 0)
)

// ExtractSeason finds a season number, including Chinese numerals
// (第二季) and roman numerals (Season III, or a bare "Title III" suffix).
// Returns 0 when no season is present.
func ExtractSeason(text string) (int, []string) {
	for _, re := range patterns.SeasonPatterns {
		if m := patterns.FindMatch(re, text); m != nil {
			if v := ChineseToNumber(patterns.Group(m, 1)); v > 0 {
				return v, []string{fmt.Sprintf("[builtin] season: S%d", v)}
			}
		}
	}
	if m := patterns.FindMatch(romanSeasonExplicit, text); m != nil {
		if v := RomanToInt(patterns.Group(m, 1)); v > 0 {
			return v, []string{fmt.Sprintf("[builtin] roman season: S%d", v)}
		}
	}
	// Bare roman suffix is risky: cap at 2..10 so "I" and long words
	// never register.
	if m := patterns.FindMatch(romanSeasonSuffix, text); m != nil {
		if v := RomanToInt(patterns.Group(m, 1)); v > 1 && v <= 10 {
			return v, []string{fmt.Sprintf("[builtin] roman suffix season: S%d", v)}
		}
	}
	return 0, nil
}

// ValidateEpisode vets a candidate episode number against the filename
// it came from, intercepting misfires where the number is actually part
// of a codec (H.264) or resolution (720p) token. Returns 0 on rejection.
func ValidateEpisode(raw string, filename string) (int, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	codecRe, err1 := patterns.Compile(`[Hx]\.?` + raw + `\b`)
	pixRe, err2 := patterns.Compile(`\b` + raw + `[Pp]\b`)
	explicitRe, err3 := patterns.Compile(`(?<![A-Za-z])(?:EP|第|E|episode|#)\s*0*` + raw)
	if err1 == nil && err2 == nil && err3 == nil {
		if patterns.Match(codecRe, filename) || patterns.Match(pixRe, filename) {
			if !patterns.Match(explicitRe, filename) {
				return 0, []string{fmt.Sprintf("[builtin] episode misfire intercepted: %s", raw)}
			}
		}
	}
	return val, []string{fmt.Sprintf("[builtin] episode validated: E%s", raw)}
}

// ExtractEpisode finds an episode number in text, validated against
// filenameContext.
func ExtractEpisode(text, filenameContext string) (int, []string) {
	for _, re := range patterns.EpisodePatterns {
		if m := patterns.FindMatch(re, text); m != nil {
			return ValidateEpisode(patterns.Group(m, 1), filenameContext)
		}
	}
	return 0, nil
}

// ExtractResolution normalizes resolution tokens: 2160p and 4k collapse
// to 4K, WxH dimensions are bucketed by their larger/smaller axis.
func ExtractResolution(filename string) (string, []string) {
	m := patterns.FindMatch(patterns.Resolution, filename)
	if m == nil {
		return "", nil
	}
	raw := strings.ToLower(m.String())
	switch {
	case strings.Contains(raw, "4k") || strings.Contains(raw, "2160p"):
		return "4K", []string{fmt.Sprintf("[builtin] resolution: %s -> 4K", m.String())}
	case strings.Contains(raw, "1080p"):
		return "1080P", []string{fmt.Sprintf("[builtin] resolution: %s -> 1080P", m.String())}
	case strings.Contains(raw, "720p"):
		return "720P", []string{fmt.Sprintf("[builtin] resolution: %s -> 720P", m.String())}
	case strings.Contains(raw, "x"):
		parts := strings.SplitN(raw, "x", 2)
		w, errW := strconv.Atoi(parts[0])
		h, errH := strconv.Atoi(parts[1])
		if errW == nil && errH == nil {
			maxD, minD := w, h
			if h > w {
				maxD, minD = h, w
			}
			var final string
			switch {
			case maxD >= 3840 || minD >= 2160:
				final = "4K"
			case maxD >= 1920 || minD >= 1080:
				final = "1080P"
			case maxD >= 1280 || minD >= 720:
				final = "720P"
			default:
				final = fmt.Sprintf("%dP", minD)
			}
			return final, []string{fmt.Sprintf("[builtin] resolution (%s): %s", m.String(), final)}
		}
	}
	return strings.ToUpper(raw), nil
}

// ExtractVideoCodec normalizes video codec tokens to H.265/H.264/AV1.
func ExtractVideoCodec(filename string) (string, []string) {
	m := patterns.FindMatch(patterns.VideoCodec, filename)
	if m == nil {
		return "", nil
	}
	raw := strings.ToUpper(m.String())
	raw = strings.NewReplacer(".", "", "-", "").Replace(raw)
	var final string
	switch {
	case strings.Contains(raw, "265") || strings.Contains(raw, "HEVC"):
		final = "H.265"
	case strings.Contains(raw, "264") || strings.Contains(raw, "AVC"):
		final = "H.264"
	case strings.Contains(raw, "AV1"):
		final = "AV1"
	case strings.Contains(raw, "MPEG"):
		final = strings.ToUpper(m.String())
	default:
		final = m.String()
	}
	return final, []string{fmt.Sprintf("[builtin] video codec: %s -> %s", m.String(), final)}
}

var audioOrder = []string{"Dolby", "DTS-HD", "TrueHD", "LPCM", "E-AC-3", "AC-3", "DTS", "FLAC", "Opus", "AAC", "Vorbis"}

// ExtractAudioCodec normalizes every audio token (with its optional
// channel layout) and joins them in fidelity order.
func ExtractAudioCodec(filename string) (string, []string) {
	matches := patterns.FindAllMatches(patterns.AudioCodec, filename)
	if len(matches) == 0 {
		return "", nil
	}
	var finalTags, rawParts []string
	seen := map[string]bool{}
	for _, m := range matches {
		codecRaw := strings.ToUpper(patterns.Group(m, 1))
		codecRaw = strings.NewReplacer(".", "", "-", "", "_", "").Replace(codecRaw)
		codec := codecRaw
		switch {
		case strings.Contains(codecRaw, "ATMOS"):
			codec = "Dolby Atmos"
		case strings.Contains(codecRaw, "DTSHDMA") || strings.Contains(codecRaw, "DTSMA"):
			codec = "DTS-HD MA"
		case strings.Contains(codecRaw, "DTSHD"):
			codec = "DTS-HD"
		case strings.Contains(codecRaw, "EAC3") || strings.Contains(codecRaw, "DDP") || strings.Contains(codecRaw, "DD+"):
			codec = "E-AC-3"
		case strings.Contains(codecRaw, "AC3") || codecRaw == "DD":
			codec = "AC-3"
		case strings.Contains(codecRaw, "TRUEHD"):
			codec = "TrueHD"
		case strings.Contains(codecRaw, "LPCM") || strings.Contains(codecRaw, "PCM"):
			codec = "LPCM"
		case codecRaw == "DTS":
			codec = "DTS"
		case strings.Contains(codecRaw, "AAC"):
			codec = "AAC"
		case strings.Contains(codecRaw, "FLAC"):
			codec = "FLAC"
		case strings.Contains(codecRaw, "OPUS"):
			codec = "Opus"
		case strings.Contains(codecRaw, "VORBIS"):
			codec = "Vorbis"
		}
		channelRaw := strings.ToLower(strings.ReplaceAll(patterns.Group(m, 2), "_", ""))
		channel := channelRaw
		switch {
		case strings.Contains(channelRaw, "2ch"):
			channel = "2.0"
		case strings.Contains(channelRaw, "6ch"):
			channel = "5.1"
		case strings.Contains(channelRaw, "8ch"):
			channel = "7.1"
		}
		fullTag := codec
		if channel != "" {
			fullTag = codec + " " + channel
		}
		if !seen[fullTag] {
			seen[fullTag] = true
			finalTags = append(finalTags, fullTag)
			rawParts = append(rawParts, m.String())
		}
	}
	rank := func(tag string) int {
		base := strings.SplitN(tag, " ", 2)[0]
		for i, o := range audioOrder {
			if strings.HasPrefix(base, o) {
				return i
			}
		}
		return 99
	}
	sort.SliceStable(finalTags, func(i, j int) bool { return rank(finalTags[i]) < rank(finalTags[j]) })
	final := strings.Join(finalTags, " ")
	return final, []string{fmt.Sprintf("[builtin] audio: %s -> %s", strings.Join(rawParts, " "), final)}
}

var sourceMapping = map[string]string{
	"WEBRIP": "WebRip", "WEBDL": "WEB-DL",
	"BLURAY": "Blu-ray", "BD": "Blu-ray", "BLU": "Blu-ray",
	"HDTV": "HDTV", "UHDTV": "UHDTV", "DVDRIP": "DVD-Rip", "BDRIP": "BD-Rip",
	"REMUX": "Remux", "UHD": "UHD", "PDTV": "PDTV", "DVDSCR": "DVD-SCR", "WEB": "WEB",
}

var sourceOrder = []string{"UHD", "Blu-ray", "WEB-DL", "WebRip", "HDTV", "Remux"}

// ExtractSource normalizes and orders source medium tokens, so a
// "UHD BluRay Remux" release reports "UHD.Blu-ray.Remux".
func ExtractSource(filename string) (string, []string) {
	raws := patterns.FindAllGroup1(patterns.SourceMedium, filename)
	if len(raws) == 0 {
		return "", nil
	}
	var res []string
	seen := map[string]bool{}
	for _, r := range raws {
		key := strings.ReplaceAll(strings.ToUpper(r), "-", "")
		final, ok := sourceMapping[key]
		if !ok {
			final = r
		}
		if !seen[final] {
			seen[final] = true
			res = append(res, final)
		}
	}
	rank := func(s string) int {
		for i, o := range sourceOrder {
			if s == o {
				return i
			}
		}
		return 99
	}
	sort.SliceStable(res, func(i, j int) bool { return rank(res[i]) < rank(res[j]) })
	final := strings.Join(res, ".")
	return final, []string{fmt.Sprintf("[builtin] source medium: %s -> %s", strings.Join(raws, "."), final)}
}

// ExtractDynamicRange collects dynamic range markers and emits them in
// priority order (Dolby Vision first, SDR last).
func ExtractDynamicRange(filename string) (string, []string) {
	raws := patterns.FindAllGroup1(patterns.DynamicRange, filename)
	if len(raws) == 0 {
		return "", nil
	}
	found := map[string]bool{}
	for _, r := range raws {
		found[strings.ReplaceAll(strings.ToUpper(r), " ", "")] = true
	}
	var res []string
	if found["DOVI"] || found["DV"] || found["DOLBYVISION"] {
		res = append(res, "Dolby Vision")
	}
	switch {
	case found["HDR10+"]:
		res = append(res, "HDR10+")
	case found["HDR10"]:
		res = append(res, "HDR10")
	case found["HDR"]:
		res = append(res, "HDR")
	}
	if found["HLG"] {
		res = append(res, "HLG")
	}
	if found["IMAX"] {
		res = append(res, "IMAX")
	}
	if found["SDR"] {
		res = append(res, "SDR")
	}
	if len(res) == 0 {
		return "", nil
	}
	final := strings.Join(res, ".")
	return final, []string{fmt.Sprintf("[builtin] dynamic range: %s", final)}
}

var platformMapping = map[string]string{
	"CR": "Crunchyroll", "NF": "Netflix", "AMZN": "Amazon",
	"ATVP": "AppleTV+", "DSNP": "Disney+",
}

// ExtractPlatform finds the streaming platform token and expands the
// common abbreviations.
func ExtractPlatform(filename string) (string, []string) {
	m := patterns.FindMatch(patterns.Platform, filename)
	if m == nil {
		return "", nil
	}
	raw := strings.TrimLeft(m.String(), "-")
	upper := strings.ToUpper(raw)
	final, ok := platformMapping[upper]
	if !ok {
		switch {
		case raw == "iT":
			final = "iTunes"
		case upper == "CRAMZN":
			final = "Amazon"
		default:
			final = raw
		}
	}
	msg := fmt.Sprintf("[builtin] platform: %s", raw)
	if final != raw {
		msg += fmt.Sprintf(" -> %s", final)
	}
	return final, []string{msg}
}

var (
	leadingBracketGroup = regexp2.MustCompile(`^\[([^\]]+)\]`, 0)
	fileExtension       = regexp2.MustCompile(`\.[a-zA-Z0-9]+$`, 0)
	trailingGroup       = regexp2.MustCompile(`-([a-zA-Z0-9\.@\[_\-]+)$`, 0)
	allDigits           = regexp2.MustCompile(`^\d+$`, 0)
)

// IsValidGroup vets a release-group candidate: long enough, not purely
// numeric, not digit-dominated, and a non-trivial tail after any "@".
func IsValidGroup(g string) bool {
	g = strings.TrimSpace(g)
	runes := []rune(g)
	if len(runes) < 2 {
		return false
	}
	if patterns.Match(allDigits, g) {
		return false
	}
	if strings.Contains(g, "@") {
		parts := strings.Split(g, "@")
		if len([]rune(strings.TrimSpace(parts[len(parts)-1]))) < 2 {
			return false
		}
	}
	digits := 0
	for _, r := range runes {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return float64(digits)/float64(len(runes)) <= 0.8
}

// ExtractReleaseGroup resolves the release group using three strategies
// in order: the parser-supplied hint, the leading bracket block, then a
// trailing "-Group" suffix. Platform words and technical tokens are
// rejected at every step.
func ExtractReleaseGroup(filename, infoGroup string) (string, []string) {
	var logs []string

	if infoGroup != "" && patterns.Match(patterns.Platform, infoGroup) {
		logs = append(logs, fmt.Sprintf("[builtin] platform word rejected as group: %s", infoGroup))
		infoGroup = ""
	}
	if infoGroup != "" && !patterns.NotGroupContains(infoGroup) && IsValidGroup(infoGroup) {
		return infoGroup, append(logs, fmt.Sprintf("[builtin] release group: %s", infoGroup))
	}

	if m := patterns.FindMatch(leadingBracketGroup, filename); m != nil {
		candidate := patterns.Group(m, 1)
		if !patterns.Match(patterns.Platform, candidate) && IsValidGroup(candidate) {
			return candidate, append(logs, fmt.Sprintf("[builtin] leading release group: %s", candidate))
		}
	}

	baseName := patterns.ReplaceAll(fileExtension, filename, "")
	if m := patterns.FindMatch(trailingGroup, baseName); m != nil {
		candidate := patterns.Group(m, 1)
		if !patterns.NotGroupContains(candidate) && IsValidGroup(candidate) {
			return candidate, append(logs, fmt.Sprintf("[builtin] trailing release group: %s", candidate))
		}
	}
	return "", logs
}
