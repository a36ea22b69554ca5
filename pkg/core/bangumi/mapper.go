package bangumi

import (
	"context"
	"fmt"

	coreerrors "github.com/angelospk/animatch/pkg/core/errors"
	"github.com/angelospk/animatch/pkg/core/scoring"
	"github.com/angelospk/animatch/pkg/core/tmdb"
)

// Mapping thresholds: a phase stops early at mapAcceptScore, and the
// overall best must clear mapMinScore to count as a mapping at all.
const (
	mapAcceptScore = 85.0
	mapMinScore    = 70.0
)

// SearchStrategy is one query attempt against TMDB.
type SearchStrategy struct {
	Query string
	Year  string
	Desc  string
}

// GenerateSearchStrategies builds the query ladder for mapping a
// subject onto TMDB: the original Japanese name leads because TMDB's
// original_title field is the most stable anchor, then the Chinese
// name, each with and without the year, then truncated franchise
// bases.
func GenerateSearchStrategies(subject *Subject, year string) []SearchStrategy {
	var out []SearchStrategy
	seen := map[string]bool{}
	add := func(query, y, desc string) {
		if query == "" {
			return
		}
		key := query + "|" + y
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, SearchStrategy{Query: query, Year: y, Desc: desc})
	}

	if year == "" {
		year = subject.Year()
	}
	add(subject.Name, year, "original name with year")
	add(subject.Name, "", "original name")
	add(subject.NameCN, year, "cn name with year")
	add(subject.NameCN, "", "cn name")
	add(scoring.ExtractBaseName(subject.Name), "", "original base name")
	add(scoring.ExtractBaseName(subject.NameCN), "", "cn base name")
	return out
}

// MapToTMDB resolves a verified subject to a TMDB entry. Movie-like
// subjects try the movie catalog first, series the tv one; the weaker
// phase only runs when the first produced nothing convincing.
func (c *Client) MapToTMDB(ctx context.Context, t *tmdb.Client, subject *Subject, year string) (*tmdb.Details, []string, error) {
	var logs []string

	phases := []string{"tv", "movie"}
	if subject.IsMovieLike() {
		phases = []string{"movie", "tv"}
	}
	strategies := GenerateSearchStrategies(subject, year)
	if len(strategies) == 0 {
		return nil, logs, fmt.Errorf("subject %d has no usable names: %w", subject.ID, coreerrors.ErrNotFound)
	}

	var best *tmdb.SearchResult
	var bestScore float64

phaseLoop:
	for _, phase := range phases {
		for _, strat := range strategies {
			results, err := t.Search(ctx, strat.Query, phase, strat.Year, "")
			if err != nil {
				logs = append(logs, fmt.Sprintf("[bangumi->tmdb] %s %q failed: %v", phase, strat.Query, err))
				continue
			}
			for i := range results {
				r := results[i]
				score := scoring.ScoreAgainstSubject(scoring.Candidate{
					ID:            r.ID,
					Title:         r.DisplayTitle(),
					OriginalTitle: r.OriginalDisplayTitle(),
					Year:          r.Year(),
					MediaType:     r.MediaType,
					GenreIDs:      r.GenreIDs,
				}, subject.Title(), subject.Year(), phase)
				if score > bestScore {
					bestScore = score
					best = &results[i]
				}
			}
			if bestScore >= mapAcceptScore {
				logs = append(logs, fmt.Sprintf("[bangumi->tmdb] %s phase convinced at %.1f (%s)", phase, bestScore, strat.Desc))
				break phaseLoop
			}
		}
	}

	if best == nil || bestScore < mapMinScore {
		return nil, logs, fmt.Errorf("no tmdb mapping for subject %d (best %.1f): %w", subject.ID, bestScore, coreerrors.ErrNotFound)
	}
	logs = append(logs, fmt.Sprintf("[bangumi->tmdb] mapped subject %d to tmdb %d (%.1f)", subject.ID, best.ID, bestScore))

	details, err := t.GetDetails(ctx, best.ID, best.MediaType, "")
	if err != nil {
		return nil, logs, err
	}
	details.Score = bestScore
	return details, logs, nil
}
