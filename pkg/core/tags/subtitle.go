package tags

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

// subtitleRule maps a filename pattern to its canonical subtitle label.
// Labels are the community's Chinese-script vocabulary (简繁内封 etc.)
// and are emitted verbatim; first match wins.
type subtitleRule struct {
	re    *regexp2.Regexp
	label string
}

var subtitleRules = buildSubtitleRules([]struct {
	pattern string
	label   string
}{
	{`\[BIG5\]|\[BIG5_MP4\]|\[CHT\]`, "繁体内嵌"},
	{`\[GB\]|\[GB_MP4\]|\[GB_CN\]|\[CHS\]`, "简体内嵌"},
	{`简体双语|简日特效字幕`, "简日双语"},
	{`\[CHI_JPN\]|JPSC&JPTC|SUBx3|\[jap_chs_cht\]`, "简繁日内封"},
	{`ASSx1|SRTx1`, "简体内封"},
	{`\bASSx2|\bASS|\bSRTx2|\bSRT`, "简繁内封"},
	{`(CHS|GB|SC)(&|_|＆|\x20)(CHT|BIG5|TC)(&|_|＆|\x20)JA?PN?`, "简繁日内封"},
	{`(CHS|GB|SC)_JA?PN?(&|＆|\x20)(CHT|BIG5|TC)_JA?PN?`, "简繁日内封"},
	{`(CHS|GB|SC)(_|&|＆|\x20)(CHT|BIG5|TC)`, "简繁内封"},
	{`(CHS|GB|SC)_?(CHT|BIG5|TC)`, "简繁内封"},
	{`(CHS|GB|SC)(_|&|＆|\x20)(-)JA?PN?`, "简日双语"},
	{`(CHT|BIG5|TC)(_|&|＆|\x20)(-)JA?PN?`, "繁日双语"},
	{`\[JA?PN?(_|&|＆|\x20)?(SC|CHS|GB)\]`, "简日双语"},
	{`\[JA?PN?(_|&|＆|\x20)?(TC|CHT|BIG5)\]`, "繁日双语"},
	{`简日内嵌|簡日內嵌`, "简日内嵌"},
	{`繁日内嵌|繁日內嵌`, "繁日内嵌"},
	{`简繁内嵌|簡繁內嵌`, "简繁内嵌"},
	{`简体内嵌|簡體內嵌`, "简体内嵌"},
	{`繁体内嵌|繁體內嵌`, "繁体内嵌"},
	{`简繁日内封|簡繁日內封`, "简繁日内封"},
	{`简日内封|簡日內封`, "简日内封"},
	{`繁日内封|繁日內封`, "繁日内封"},
	{`简体内封|簡體內封`, "简体内封"},
	{`繁体内封|繁體內封`, "繁体内封"},
})

func buildSubtitleRules(src []struct {
	pattern string
	label   string
}) []subtitleRule {
	out := make([]subtitleRule, 0, len(src))
	for _, s := range src {
		out = append(out, subtitleRule{regexp2.MustCompile(s.pattern, regexp2.IgnoreCase), s.label})
	}
	return out
}

var (
	subCJFuzzy  = regexp2.MustCompile(`(简日|CHS\s*JAP|SC\s*JP)`, 0)
	subTJFuzzy  = regexp2.MustCompile(`(繁日|CHT\s*JAP|TC\s*JP)`, 0)
	subSTFuzzy  = regexp2.MustCompile(`(简繁|CHS\s*CHT|SC\s*TC)`, 0)
	subHasCHS   = regexp2.MustCompile(`(CHS|GB|SC|简体|简中)`, 0)
	subHasCHT   = regexp2.MustCompile(`(CHT|BIG5|TC|繁体|繁中)`, 0)
	subHasJP    = regexp2.MustCompile(`(JAP|JP|日文|日语)`, 0)
	subHasENG   = regexp2.MustCompile(`(ENG|EN|英文|英语)`, 0)
)

// ExtractSubtitleLang resolves the subtitle-language label for a
// filename. The explicit rule table is consulted first; when nothing
// matches, the name is normalized and scanned for language fragments.
func ExtractSubtitleLang(filename string) (string, []string) {
	for _, rule := range subtitleRules {
		if patterns.Match(rule.re, filename) {
			return rule.label, []string{fmt.Sprintf("[builtin] subtitle language: %s", rule.label)}
		}
	}

	norm := strings.ToUpper(filename)
	norm = strings.NewReplacer("_", " ", "&", " ", "+", " ").Replace(norm)
	langs := map[string]bool{}
	switch {
	case patterns.Match(subCJFuzzy, norm):
		langs["简日双语"] = true
	case patterns.Match(subTJFuzzy, norm):
		langs["繁日双语"] = true
	case patterns.Match(subSTFuzzy, norm):
		langs["简繁双语"] = true
	}
	if len(langs) == 0 {
		hasCHS := patterns.Match(subHasCHS, norm)
		hasCHT := patterns.Match(subHasCHT, norm)
		hasJP := patterns.Match(subHasJP, norm)
		switch {
		case hasCHS && hasJP:
			langs["简日双语"] = true
		case hasCHT && hasJP:
			langs["繁日双语"] = true
		case hasCHS && hasCHT:
			langs["简繁双语"] = true
		case hasCHS:
			langs["简体中文"] = true
		case hasCHT:
			langs["繁体中文"] = true
		case hasJP:
			langs["日文"] = true
		}
	}
	if len(langs) == 0 && patterns.Match(subHasENG, norm) {
		langs["英文"] = true
	}
	if len(langs) == 0 {
		return "", nil
	}
	sorted := make([]string, 0, len(langs))
	for l := range langs {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)
	final := strings.Join(sorted, " & ")
	return final, []string{fmt.Sprintf("[builtin] subtitle language: %s", final)}
}
