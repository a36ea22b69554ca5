package cleaner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

var (
	genericEpisode = regexp2.MustCompile(`(?i)(?<![A-Za-z])(?:EP|Episode|E|#|第|Vol\.?)\s*\d{1,4}(?:[-\s~]+\d{1,4})?(?:话|集|話|巻|卷|End|Fin)?`, 0)
	tailGarbage    = regexp2.MustCompile(`[-@][a-zA-Z0-9]+$`, 0)
	bracketRuns    = regexp2.MustCompile(`[\[\]\(\)\-\._/]+`, 0)
	hasDigit       = regexp2.MustCompile(`\d`, 0)
	allDigitsRun   = regexp2.MustCompile(`^\d+$`, 0)
)

// residualTags are quality/subtitle fragments the first pass can leave
// behind inside an extracted title.
var residualTags = []*regexp2.Regexp{
	regexp2.MustCompile(`(?i)\b(?:AVC|HEVC|AAC|AC3|DTS|TRUEHD|OPUS)\b`, 0),
	regexp2.MustCompile(`(?i)(?:内封|內封|内嵌|內嵌|外挂|外掛|字幕|特效|TC|SC|CHT|CHS)`, 0),
	// Script/language markers only count when delimited: a 日 inside a
	// title like 转生史莱姆日记 must survive.
	regexp2.MustCompile(`(?<![一-龥])[简簡繁正中日双雙英多]+[体文语語]?(?![一-龥])`, 0),
	regexp2.MustCompile(`(?i)(?:WebRip|WebDL|BluRay|BD|HDTV)`, 0),
}

// ResidualClean strips every technical token, noise word, season and
// episode remnant out of a candidate title, leaving only the name.
// year and episode are the values already extracted upstream; pass ""
// and 0 when unknown.
func ResidualClean(rawTitle, year string, episode int) (string, []string) {
	temp := rawTitle
	var logs []string

	specPatterns := []struct {
		re   *regexp2.Regexp
		name string
	}{
		{patterns.Resolution, "resolution"},
		{patterns.VideoCodec, "video codec"},
		{patterns.AudioCodec, "audio codec"},
		{patterns.SourceMedium, "source medium"},
		{patterns.Effect, "effect tag"},
		{patterns.Platform, "platform"},
		{patterns.DynamicRange, "dynamic range"},
	}
	for _, sp := range specPatterns {
		found := patterns.FindAllGroup1(sp.re, temp)
		if len(found) == 0 {
			continue
		}
		for _, f := range found {
			logs = append(logs, fmt.Sprintf("[builtin] stripped %s: %s", sp.name, f))
		}
		temp = patterns.EraseAll(sp.re, temp)
	}

	for _, nw := range patterns.NoiseWords {
		if m := patterns.FindMatch(nw, temp); m != nil {
			logs = append(logs, fmt.Sprintf("[builtin] noise word removed: %s", m.String()))
			temp = patterns.EraseAll(nw, temp)
		}
	}

	if year != "" && strings.Contains(temp, year) {
		logs = append(logs, fmt.Sprintf("[clean] residual year stripped: %s", year))
		temp = strings.ReplaceAll(temp, year, " ")
	}

	if episode > 0 {
		ep := strconv.Itoa(episode)
		epRe, err := patterns.Compile(`(?<![A-Za-z])(?:EP|Episode|E|#|第|集|话|話|巻|卷)\s*0*` + ep + `\b|\b0*` + ep + `\b`)
		if err == nil && patterns.Match(epRe, temp) {
			logs = append(logs, fmt.Sprintf("[clean] residual episode marker stripped: %d", episode))
			temp = patterns.EraseAll(epRe, temp)
		}
	}

	// Generic episode shapes that survived because the number was never
	// extracted (第01话 etc). Bare short numbers stay: they can be part
	// of a title like 12岁.
	for _, m := range patterns.FindAllMatches(genericEpisode, temp) {
		val := strings.TrimSpace(m.String())
		if !patterns.Match(hasDigit, val) {
			continue
		}
		if patterns.Match(allDigitsRun, val) && len(val) < 3 {
			continue
		}
		logs = append(logs, fmt.Sprintf("[clean] generic episode shape stripped: %s", val))
		temp = strings.ReplaceAll(temp, val, " ")
	}

	for _, tag := range residualTags {
		if patterns.Match(tag, temp) {
			temp = patterns.EraseAll(tag, temp)
			logs = append(logs, "[clean] residual tag stripped")
		}
	}

	for _, sp := range patterns.SeasonPatterns {
		if m := patterns.FindMatch(sp, temp); m != nil {
			logs = append(logs, fmt.Sprintf("[clean] residual season marker stripped: %s", m.String()))
			temp = patterns.EraseAll(sp, temp)
		}
	}

	// Trailing site/group debris such as "-ADE" or "@ADWeb".
	trimmed := strings.TrimSpace(temp)
	if m := patterns.FindMatch(tailGarbage, trimmed); m != nil {
		logs = append(logs, fmt.Sprintf("[clean] trailing site/group tag stripped: %s", m.String()))
		temp = patterns.EraseAll(tailGarbage, trimmed)
	}

	final := strings.TrimSpace(patterns.EraseAll(bracketRuns, temp))
	return strings.TrimSpace(patterns.ReplaceAll(whitespaceRuns, final, " ")), logs
}
