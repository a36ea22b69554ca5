// Package batch detects collection (multi-episode) releases and hosts
// the privileged special-episode rules. Episode bounds are float64 so
// half-numbered specials like 24.5 survive.
package batch

import (
	"fmt"
	"strconv"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

// Range is an inclusive episode span.
type Range struct {
	Start float64
	End   float64
}

// groupShapes are collection formats specific to well-known release
// groups, tried before the generic patterns.
var groupShapes = []struct {
	re   *regexp2.Regexp
	name string
}{
	{regexp2.MustCompile(`(?i)LoliHouse.*?\[(\d{1,3})\s?-\s?(\d{1,3})\s?.*?合集.*?\]`, 0), "LoliHouse-General"},
	{regexp2.MustCompile(`(?i)SweetSub.*?\[(\d{1,3})\s?-\s?(\d{1,3})\s?.*?合集.*?\]`, 0), "SweetSub-General"},
	{regexp2.MustCompile(`\[(\d+(?:\.\d+)?)\s?-\s?(\d+(?:\.\d+)?)\s?\(\d+(?:\.\d+)?-\d+(?:\.\d+)?\)\s*合集\]`, 0), "LoliHouse-Old"},
	{regexp2.MustCompile(`\|\s*(\d{1,3})\s?-\s?(\d{1,3})\s?\(\d{1,3}\s?-\s?\d{1,3}\)`, 0), "7³ACG"},
}

// genericShapes catch bracketed, piped, Chinese-described and scene
// style ranges. The second group may be absent for the 全X集 shape,
// where the range implicitly starts at 1.
var genericShapes = []*regexp2.Regexp{
	// [01-13], [01-13Fin], [TV01-25Fin], 【13~24】, [01-24(全集)]
	regexp2.MustCompile(`(?:\[|【)(?:TV|EP|E)?\s?(\d{1,3})\s?[-~]\s?(\d{1,3})(?:Fin|END|\]|】|合集|集|话|話|巻|卷|v|\s\[|\()`, regexp2.IgnoreCase),
	// | 01-13, - 01-13
	regexp2.MustCompile(`(?:\|\s?|\-\s)(\d{1,3})\s?[-~]\s?(\d{1,3})(?=\s|\[|\]|】|Fin|END)`, regexp2.IgnoreCase),
	// bare 01-12 with a collection word right behind it
	regexp2.MustCompile(`(?<![0-9xX.])(\d{1,3})\s?[-~]\s?(\d{1,3})\s*(?:合集|全集|完结|合訂|Fin|END|Batch|Collection)`, regexp2.IgnoreCase),
	// 第01-13集
	regexp2.MustCompile(`第(\d{1,3})\s?[-~]\s?(\d{1,3})[集话話期]`, 0),
	// 全12话: start is implicitly 1
	regexp2.MustCompile(`(?:全|共)(\d{1,3})[集话話期]`, 0),
	// S01E09-E10, E01-E12
	regexp2.MustCompile(`(?i)(?:S\d{1,2})?EP?(\d{1,4})\s?[-~]\s?EP?(\d{1,4})`, 0),
}

// AnalyzeFilename digs a collection range out of a filename. Returns
// nil when the name does not look like a batch.
func AnalyzeFilename(filename string) (*Range, []string) {
	var logs []string

	for _, gs := range groupShapes {
		m := patterns.FindMatch(gs.re, filename)
		if m == nil {
			continue
		}
		sRaw, eRaw := patterns.Group(m, 1), patterns.Group(m, 2)
		s, errS := strconv.ParseFloat(sRaw, 64)
		e, errE := strconv.ParseFloat(eRaw, 64)
		if errS != nil || errE != nil {
			continue
		}
		logs = append(logs, fmt.Sprintf("[batch] %s collection shape: %s-%s", gs.name, sRaw, eRaw))
		return &Range{Start: s, End: e}, logs
	}

	for _, re := range genericShapes {
		m := patterns.FindMatch(re, filename)
		if m == nil {
			continue
		}
		g1, g2 := patterns.Group(m, 1), patterns.Group(m, 2)
		var s, e int
		var err error
		if g2 == "" {
			s = 1
			e, err = strconv.Atoi(g1)
		} else {
			s, err = strconv.Atoi(g1)
			if err == nil {
				e, err = strconv.Atoi(g2)
			}
		}
		if err != nil {
			continue
		}
		// Years and inverted spans are not ranges.
		if s < e && s < 1900 && e < 1900 {
			logs = append(logs, fmt.Sprintf("[batch] collection range: %d-%d", s, e))
			return &Range{Start: float64(s), End: float64(e)}, logs
		}
	}

	return nil, logs
}

// BatchKeywords mark a filename as an explicit collection; the
// recognizer uses them when vetting multi-number parses.
var BatchKeywords = []string{"合集", "全集", "Batch", "Collection", "Fin", "合訂"}
