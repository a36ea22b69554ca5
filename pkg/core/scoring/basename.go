package scoring

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

// truncationPatterns cut a compound title down to its franchise base:
// everything after a colon, dash or season marker goes. Group 1 is the
// base.
var truncationPatterns = []*regexp2.Regexp{
	regexp2.MustCompile(`^(.{2,}?)\s*[:：].+$`, 0),
	regexp2.MustCompile(`^(.{2,}?)\s+[-–—~〜].+$`, 0),
	regexp2.MustCompile(`^(.{2,}?)\s*第.{1,3}[季期部]`, 0),
	regexp2.MustCompile(`(?i)^(.{2,}?)\s+Season\s*\d+`, 0),
	regexp2.MustCompile(`(?i)^(.{2,}?)\s+S\d{1,2}\b`, 0),
	regexp2.MustCompile(`(?i)^(.{2,}?)\s+(?:2nd|3rd|\d{1,2}th)\s+Season`, 0),
	regexp2.MustCompile(`(?i)^(.{2,}?)\s+(?:II|III|IV)\b`, 0),
}

// formatCleanPatterns erase theatrical/format decorations that search
// APIs rarely index.
var formatCleanPatterns = []*regexp2.Regexp{
	regexp2.MustCompile(`剧场版|劇場版|映画|げきじょうばん`, 0),
	regexp2.MustCompile(`(?i)\bthe\s+movie\b|\bthe\s+animation\b`, 0),
	regexp2.MustCompile(`(?i)\b(?:TV|OVA|OAD|ONA)\s*(?:アニメ|动画|動畫)?\b`, 0),
	regexp2.MustCompile(`【[^】]*】|\[[^\]]*\]`, 0),
}

// ExtractBaseName derives the franchise base of a title for a retry
// query. Returns "" when truncation changes nothing worth retrying.
func ExtractBaseName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	base := title
	for _, re := range truncationPatterns {
		if m := patterns.FindMatch(re, base); m != nil {
			if g := strings.TrimSpace(patterns.Group(m, 1)); g != "" {
				base = g
				break
			}
		}
	}
	for _, re := range formatCleanPatterns {
		base = strings.TrimSpace(patterns.EraseAll(re, base))
	}
	base = strings.Join(strings.Fields(base), " ")
	if len([]rune(base)) < 2 || base == title {
		return ""
	}
	return base
}
