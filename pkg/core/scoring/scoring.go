// Package scoring ranks catalog candidates against recognized titles.
// Scores are 0-100 plus bonuses; the providers decide acceptance
// thresholds, this package only measures similarity.
package scoring

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Candidate is a provider-agnostic search result under scoring.
type Candidate struct {
	ID            int
	Title         string
	OriginalTitle string
	Year          string
	MediaType     string // "movie" or "tv"
	GenreIDs      []int
}

// AnimeGenreID is TMDB's Animation genre.
const AnimeGenreID = 16

// Bonus weights. Rank bonuses reward the provider's own ordering so a
// fuzzy tie breaks toward the catalog's first page.
const (
	animeBonus = 40
	exactScore = 100
	subsetScore = 80
)

var rankBonuses = []float64{15, 10, 5}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds diacritics, drops every non-word rune and upper-cases
// the rest, so "Re:Zero" and "RE ZERO" compare equal.
func Normalize(s string) string {
	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// Ratio is the fuzzy similarity of two strings in [0,1].
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return float64(edlib.JaroWinklerSimilarity(strings.ToLower(a), strings.ToLower(b)))
}

// ScoreCandidate scores one candidate against the pre-normalized match
// targets. rank is the candidate's position in the provider's result
// order. The anime bonus only applies when the caller prioritizes
// animated entries. Type, year and floor adjustments live in
// ScoreAgainstSubject, which handles the cross-catalog mapping case
// where those facts are known.
func ScoreCandidate(c Candidate, targets []string, rank int, animePriority bool) float64 {
	names := []string{Normalize(c.Title), Normalize(c.OriginalTitle)}

	var best float64
	for _, t := range targets {
		if t == "" {
			continue
		}
		for _, name := range names {
			if name == "" {
				continue
			}
			var s float64
			switch {
			case name == t:
				s = exactScore
			case strings.Contains(name, t) || strings.Contains(t, name):
				// Containment of a tiny fragment proves nothing; fall
				// back to the fuzzy ratio there.
				if min(len([]rune(name)), len([]rune(t))) <= 2 {
					s = Ratio(name, t) * 100
				} else {
					s = subsetScore
				}
			default:
				s = Ratio(name, t) * 100
			}
			if s > best {
				best = s
			}
		}
	}

	if animePriority && hasGenre(c.GenreIDs, AnimeGenreID) {
		best += animeBonus
	}
	if rank >= 0 && rank < len(rankBonuses) {
		best += rankBonuses[rank]
	}
	return best
}

func hasGenre(ids []int, want int) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

// queryStopWords are romaji particles and English glue words that make
// useless standalone search segments.
var queryStopWords = map[string]bool{
	"NO": true, "TO": true, "GA": true, "NI": true, "WA": true,
	"THE": true, "AND": true, "FOR": true, "WITH": true, "FROM": true,
}

var querySeparators = func(r rune) bool {
	switch r {
	case '&', '+', ' ', '　', '、', '/':
		return true
	}
	return false
}

// PrepareQueries derives up to three search queries from a title: the
// title itself, then its meaningful segments when the title is long
// enough that a partial match is plausible.
func PrepareQueries(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	queries := []string{title}
	if len([]rune(title)) > 10 {
		for _, seg := range strings.FieldsFunc(title, querySeparators) {
			seg = strings.TrimSpace(seg)
			if len([]rune(seg)) <= 2 || queryStopWords[strings.ToUpper(seg)] {
				continue
			}
			if seg == title {
				continue
			}
			queries = append(queries, seg)
			if len(queries) == 3 {
				break
			}
		}
	}
	return queries
}

// BuildMatchTargets normalizes the names a candidate may legitimately
// equal: the Chinese name, the latin name, and the strongest secondary
// query segment.
func BuildMatchTargets(cnName, enName string, cnQueries []string) []string {
	targets := []string{Normalize(cnName), Normalize(enName)}
	if len(cnQueries) > 1 {
		targets = append(targets, Normalize(cnQueries[1]))
	}
	return targets
}

// compilationKeywords mark a movie entry that is really a recap or
// compilation of a series; a tv/movie type conflict is forgiven there.
var compilationKeywords = []string{"总集篇", "總集篇", "特别篇", "特別篇", "special", "剪辑版", "剪輯版", "精选", "精選"}

func isCompilation(c Candidate) bool {
	joined := strings.ToLower(c.Title + " " + c.OriginalTitle)
	for _, kw := range compilationKeywords {
		if strings.Contains(joined, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ScoreAgainstSubject scores a TMDB candidate against a Bangumi-derived
// subject: similarity carries 60 points, type agreement 20, year
// agreement 20, plus the animation bonus. A type conflict costs 40
// unless the candidate is a compilation cut of the series.
func ScoreAgainstSubject(c Candidate, title, year, expectedType string) float64 {
	r := Ratio(title, c.Title)
	if alt := Ratio(title, c.OriginalTitle); alt > r {
		r = alt
	}
	if r < 0.4 {
		return 0
	}
	score := r * 60

	if expectedType != "" && c.MediaType != "" {
		switch {
		case c.MediaType == expectedType:
			score += 20
		case expectedType == "tv" && c.MediaType == "movie":
			if isCompilation(c) {
				score += 5
			} else {
				score -= 40
			}
		case expectedType == "movie" && c.MediaType == "tv":
			score -= 40
		}
	}

	if year != "" && c.Year != "" {
		y1, err1 := strconv.Atoi(year)
		y2, err2 := strconv.Atoi(c.Year)
		if err1 == nil && err2 == nil {
			switch d := abs(y1 - y2); {
			case d == 0:
				score += 20
			case d <= 1:
				score += 10
			}
		}
	}

	if hasGenre(c.GenreIDs, AnimeGenreID) {
		score += animeBonus
	}
	return score
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
