package recognizer

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	ptn "github.com/razsteinmetz/go-ptn"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

// ParseResult is the normalized output of an external name parser.
// Episodes holds one number for a single episode and two or more for a
// range; RangeHint marks ranges the parser saw explicitly.
type ParseResult struct {
	Title        string
	Year         string
	Season       int
	Episodes     []float64
	RangeHint    bool
	ReleaseGroup string
	Source       string
	Resolution   string
	VideoCodec   string
	AudioCodec   string
}

// NameParser is the pluggable external parser stage. Implementations
// must be total: a name they cannot handle yields a zero ParseResult,
// never an error or a panic that escapes.
type NameParser interface {
	Parse(name string) ParseResult
}

// explicitRange catches E01-E12 and bare 01-12 spans go-ptn reduces to
// a single episode. The lookarounds keep resolutions (01-1080p) out;
// inverted pairs like the 264-10 inside x264-10bit fail the sanity
// check below.
var explicitRange = regexp2.MustCompile(`(?i)(?<![0-9xX.])(?:EP?)?(\d{1,4}(?:\.\d)?)\s*[-~]\s*(?:EP?)?(\d{1,4}(?:\.\d)?)(?![0-9pPkK])`, 0)

// PTNParser adapts the go-ptn scene-name parser. Anime names regularly
// violate scene conventions, so the call is fenced with a recover and
// any panic degrades to an empty result.
type PTNParser struct{}

// Parse implements NameParser.
func (PTNParser) Parse(name string) (res ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ParseResult{}
		}
	}()

	info, err := ptn.Parse(name)
	if err == nil && info != nil {
		res.Title = strings.TrimSpace(info.Title)
		if info.Year > 0 {
			res.Year = strconv.Itoa(info.Year)
		}
		res.Season = info.Season
		if info.Episode > 0 {
			res.Episodes = []float64{float64(info.Episode)}
		}
		res.ReleaseGroup = strings.TrimSpace(info.Group)
		res.Source = info.Quality
		res.Resolution = info.Resolution
		res.VideoCodec = info.Codec
		res.AudioCodec = info.Audio
	}

	// go-ptn has no notion of a span, so an explicit range in the name
	// overrides whichever endpoint it kept.
	if m := patterns.FindMatch(explicitRange, name); m != nil {
		first, errF := strconv.ParseFloat(patterns.Group(m, 1), 64)
		last, errL := strconv.ParseFloat(patterns.Group(m, 2), 64)
		if errF == nil && errL == nil && first < last && last-first < 300 {
			res.Episodes = []float64{first, last}
			res.RangeHint = true
		}
	}
	return res
}
