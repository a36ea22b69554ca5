package batch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
	"github.com/angelospk/animatch/pkg/core/tags"
)

// Enhancement is what a release description adds on top of the
// filename parse. Zero values mean "leave as is".
type Enhancement struct {
	Season  int
	Range   *Range
	IsBatch bool
}

var (
	descSeason   = regexp2.MustCompile(`第([一二三四五六七八九十\d]+)季`, 0)
	descFullRun  = regexp2.MustCompile(`全([一二三四五六七八九十\d]+)[集期话]`, 0)
	descRange    = regexp2.MustCompile(`(\d{1,2})-(\d{1,2})(?:集|期|完|Fin|完结)?`, 0)
	descKeywords = []string{"完结", "全集", "合集", "Batch", "Pack"}
)

// EnhanceFromDescription mines a subtitle-site description for season
// and collection info the filename itself did not carry.
// currentSeason and alreadyBatch describe what the filename parse
// found; a description only overrides a default (0 or 1) season.
func EnhanceFromDescription(description string, currentSeason int, alreadyBatch bool) (Enhancement, []string) {
	var enh Enhancement
	var logs []string
	if description == "" {
		return enh, nil
	}

	if currentSeason == 0 || currentSeason == 1 {
		if m := patterns.FindMatch(descSeason, description); m != nil {
			if v := tags.ChineseToNumber(patterns.Group(m, 1)); v > 0 {
				enh.Season = v
				logs = append(logs, fmt.Sprintf("[batch] description season: S%d", v))
			}
		}
	}

	if alreadyBatch {
		return enh, logs
	}

	if m := patterns.FindMatch(descFullRun, description); m != nil {
		if e := tags.ChineseToNumber(patterns.Group(m, 1)); e > 0 {
			enh.Range = &Range{Start: 1, End: float64(e)}
			enh.IsBatch = true
			logs = append(logs, fmt.Sprintf("[batch] description full run: 1-%d", e))
			return enh, logs
		}
	}

	if m := patterns.FindMatch(descRange, description); m != nil {
		s, _ := strconv.Atoi(patterns.Group(m, 1))
		e, _ := strconv.Atoi(patterns.Group(m, 2))
		if s < e && e < 500 {
			enh.Range = &Range{Start: float64(s), End: float64(e)}
			enh.IsBatch = true
			logs = append(logs, fmt.Sprintf("[batch] description range: %d-%d", s, e))
			return enh, logs
		}
	}

	for _, kw := range descKeywords {
		if strings.Contains(description, kw) {
			enh.IsBatch = true
			logs = append(logs, "[batch] collection keyword in description")
			break
		}
	}
	return enh, logs
}
