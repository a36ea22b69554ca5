package cleaner

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/siongui/gojianfan"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

var (
	compactUnderscore = regexp2.MustCompile("([一-龥぀-ゟ゠-ヿ]+)_([a-zA-Z].+)", 0)
	splitSymbolRuns   = regexp2.MustCompile(`[\[\]\-\._/【】]+`, 0)
	cjkBlock          = regexp2.MustCompile("[一-龥぀-ゟ゠-ヿ0-9　-〿＀-￯×x]{1,}", 0)
	latinBlock        = regexp2.MustCompile(`[a-zA-Z][a-zA-Z0-9\s']{2,}`, 0)
	realCJKChar       = regexp2.MustCompile("[一-龥぀-ゟ゠-ヿ]", 0)
	digitPunctOnly    = regexp2.MustCompile("^[\\d\\s　-〿＀-￯]+$", 0)
	invalidCJKName    = regexp2.MustCompile(`^[\d\s\.\-\+\:\！\!xX]+$`, 0)
	trailingEpSuffix  = regexp2.MustCompile(`(?i)\s+(?:EP|E|S|#)?\d+$`, 0)
)

// SplitDualTitle separates a cleaned residual title into its CJK and
// Latin halves. It returns the simplified-Chinese form, the original
// (possibly traditional) CJK text, and the Latin title. Any of the
// three may be empty.
func SplitDualTitle(residualTitle string, splitMode bool) (cnSimplified, cnOriginal, en string, logs []string) {
	if residualTitle == "" {
		return "", "", "", nil
	}

	// Explicit bilingual separators first: "中文名 / English Title" or
	// the flattened "中文名 _ English Title".
	for _, sep := range []string{" / ", " _ "} {
		if !strings.Contains(residualTitle, sep) {
			continue
		}
		p1, p2, _ := strings.Cut(residualTitle, sep)
		p1, p2 = strings.TrimSpace(p1), strings.TrimSpace(p2)
		if len([]rune(p1)) >= 2 && len([]rune(p2)) >= 2 {
			cn := gojianfan.T2S(p1)
			logs = append(logs, fmt.Sprintf("[split] explicit separator %q: %s / %s", sep, cn, p2))
			return cn, p1, p2, logs
		}
		break
	}
	if strings.Contains(residualTitle, "_") {
		if m := patterns.FindMatch(compactUnderscore, residualTitle); m != nil {
			p1 := strings.TrimSpace(patterns.Group(m, 1))
			p2 := strings.TrimSpace(patterns.Group(m, 2))
			if len([]rune(p1)) >= 2 && len([]rune(p2)) >= 2 {
				cn := gojianfan.T2S(p1)
				logs = append(logs, fmt.Sprintf("[split] compact underscore separator: %s / %s", cn, p2))
				return cn, p1, p2, logs
			}
		}
	}

	title := strings.TrimSpace(patterns.EraseAll(splitSymbolRuns, residualTitle))
	logs = append(logs, fmt.Sprintf("[split] title to split: %s", title))

	if strings.Contains(title, "/") {
		p1, p2, _ := strings.Cut(title, "/")
		p1, p2 = strings.TrimSpace(p1), strings.TrimSpace(p2)
		cn := gojianfan.T2S(p1)
		logs = append(logs, fmt.Sprintf("[split] separator '/': %s / %s", cn, p2))
		return cn, p1, p2, logs
	}

	cnBlocks := collectMatches(cjkBlock, title)
	enBlocks := collectMatches(latinBlock, title)

	// Drop digit/punctuation-only blocks once a real CJK block exists.
	if len(cnBlocks) > 0 {
		hasReal := false
		for _, c := range cnBlocks {
			if patterns.Match(realCJKChar, c) {
				hasReal = true
				break
			}
		}
		if hasReal {
			var filtered []string
			for _, c := range cnBlocks {
				if !patterns.Match(digitPunctOnly, c) {
					filtered = append(filtered, c)
				}
			}
			if len(filtered) > 0 {
				cnBlocks = filtered
			}
		}
	}

	sep := ""
	if splitMode {
		sep = " "
	}
	cnOriginal = strings.TrimSpace(strings.Join(cnBlocks, sep))
	cnSimplified = gojianfan.T2S(cnOriginal)
	cnSimplified = strings.Trim(cnSimplified, " 、，。！？!?,.")
	if cnSimplified != "" && patterns.Match(invalidCJKName, cnSimplified) {
		logs = append(logs, fmt.Sprintf("[split] discarded symbol-only CJK name: %s", cnSimplified))
		cnSimplified, cnOriginal = "", ""
	}
	if cnSimplified != "" {
		logs = append(logs, fmt.Sprintf("[split] CJK title block: %s", cnSimplified))
	} else {
		cnOriginal = ""
	}

	if len(enBlocks) > 0 {
		en = strings.TrimSpace(enBlocks[0])
		// The parser sometimes swallows a trailing episode marker into
		// the title; force it off.
		en = strings.TrimSpace(patterns.ReplaceAll(trailingEpSuffix, en, ""))
	}
	if en != "" && cnSimplified != "" && strings.Contains(strings.ToLower(cnSimplified), strings.ToLower(en)) {
		en = ""
	}
	if en != "" {
		logs = append(logs, fmt.Sprintf("[split] Latin title block: %s", en))
	}
	return cnSimplified, cnOriginal, en, logs
}

func collectMatches(re *regexp2.Regexp, s string) []string {
	var out []string
	for _, m := range patterns.FindAllMatches(re, s) {
		out = append(out, m.String())
	}
	return out
}
