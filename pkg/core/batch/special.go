package batch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

// SpecialRule is a privileged extraction rule for a specific naming
// shape: when its pattern hits, the captured title and episode are
// locked and the staged pipeline is bypassed.
type SpecialRule struct {
	re         *regexp2.Regexp
	GroupIdx   int // capture index of the release group, 0 = none
	TitleIdx   int // capture index of the title, 0 = none
	EpisodeIdx int // capture index of the episode, 0 = title-only rule
	Desc       string
}

// SpecialResult is what a privileged rule extracted.
type SpecialResult struct {
	Group      string
	Title      string
	Episode    int
	EpisodeRaw string
	HasEpisode bool
}

// ParseSpecialRules loads pipe-delimited rule rows of the shape
//
//	pattern|||groupIdx|||titleIdx|||episodeIdx|||description
//
// Index fields may be empty (or 无/null/None) to opt out. Malformed
// rows are skipped.
func ParseSpecialRules(rows []string) []SpecialRule {
	var out []SpecialRule
	for _, row := range rows {
		row = strings.TrimSpace(row)
		if row == "" || strings.HasPrefix(row, "#") {
			continue
		}
		parts := strings.Split(row, "|||")
		if len(parts) < 5 {
			continue
		}
		re, err := patterns.Compile(parts[0])
		if err != nil {
			continue
		}
		out = append(out, SpecialRule{
			re:         re,
			GroupIdx:   parseRuleIndex(parts[1]),
			TitleIdx:   parseRuleIndex(parts[2]),
			EpisodeIdx: parseRuleIndex(parts[3]),
			Desc:       parts[4],
		})
	}
	return out
}

func parseRuleIndex(s string) int {
	s = strings.TrimSpace(s)
	switch s {
	case "", "无", "null", "None":
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ExtractSpecial runs the privileged rules against a filename; the
// first rule that yields a usable title wins.
func ExtractSpecial(filename string, rules []SpecialRule) (*SpecialResult, []string) {
	for _, rule := range rules {
		m := patterns.FindMatch(rule.re, filename)
		if m == nil {
			continue
		}
		if rule.TitleIdx == 0 {
			continue
		}
		title := strings.TrimSpace(patterns.Group(m, rule.TitleIdx))
		if len([]rune(title)) < 2 {
			continue
		}
		res := &SpecialResult{Title: title}
		if rule.GroupIdx > 0 {
			res.Group = strings.TrimSpace(patterns.Group(m, rule.GroupIdx))
		}
		logs := []string{fmt.Sprintf("[privileged] %s rule hit", rule.Desc), fmt.Sprintf("  title: %s", title)}
		if res.Group != "" {
			logs = append(logs, fmt.Sprintf("  group: %s", res.Group))
		}
		if rule.EpisodeIdx > 0 {
			raw := patterns.Group(m, rule.EpisodeIdx)
			ep, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			res.Episode = ep
			res.EpisodeRaw = raw
			res.HasEpisode = true
			logs = append(logs, fmt.Sprintf("  episode: %d", ep))
		} else {
			logs = append(logs, "  episode: not locked (title-only rule)")
		}
		return res, logs
	}
	return nil, nil
}
