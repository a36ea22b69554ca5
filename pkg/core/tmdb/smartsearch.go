package tmdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	coreerrors "github.com/angelospk/animatch/pkg/core/errors"
	"github.com/angelospk/animatch/pkg/core/scoring"
)

// Acceptance thresholds for the smart search.
const (
	acceptScore    = 85.0
	earlyExitScore = 95.0
	maxCandidates  = 10
)

// SmartSearchParams drive one staged catalog lookup.
type SmartSearchParams struct {
	CNName        string
	ENName        string
	Year          string
	MediaType     string // "movie" or "tv"
	AnimePriority bool
}

type searchQuery struct {
	text     string
	language string
}

// SmartSearch runs the staged lookup: Chinese queries against the zh
// catalog, then latin ones against en, merging and scoring as it goes.
// Later queries are skipped once a near-certain candidate exists. The
// winner's full details are returned with its score attached; no
// acceptable candidate yields ErrNotFound.
func (c *Client) SmartSearch(ctx context.Context, p SmartSearchParams) (*Details, []string, error) {
	var logs []string

	cnQueries := scoring.PrepareQueries(p.CNName)
	enQueries := scoring.PrepareQueries(p.ENName)
	targets := scoring.BuildMatchTargets(p.CNName, p.ENName, cnQueries)

	var queries []searchQuery
	for _, q := range cnQueries {
		queries = append(queries, searchQuery{q, LanguageChinese})
	}
	for _, q := range enQueries {
		queries = append(queries, searchQuery{q, LanguageEnglish})
	}
	if len(queries) == 0 {
		return nil, logs, fmt.Errorf("smart search without names: %w", coreerrors.ErrNotFound)
	}

	var merged []SearchResult
	seen := map[int]bool{}

	for idx, query := range queries {
		// Re-score what we already have; a near-certain hit makes the
		// remaining queries a waste of quota.
		if idx > 0 && len(merged) > 0 {
			top := merged
			if len(top) > 5 {
				top = top[:5]
			}
			certain := false
			for i := range top {
				if scoring.ScoreCandidate(top[i].candidate(), targets, i, p.AnimePriority) >= earlyExitScore {
					certain = true
					break
				}
			}
			if certain {
				logs = append(logs, fmt.Sprintf("[tmdb] near-certain candidate, %d remaining queries skipped", len(queries)-idx))
				break
			}
		}

		results, err := c.Search(ctx, query.text, p.MediaType, p.Year, query.language)
		if err != nil {
			logs = append(logs, fmt.Sprintf("[tmdb] query %q failed: %v", query.text, err))
			continue
		}
		logs = append(logs, fmt.Sprintf("[tmdb] query %q (%s): %d result(s)", query.text, query.language, len(results)))

		// A full-name query with exactly one hit is trusted outright.
		if idx == 0 && len(results) == 1 {
			merged = results
			seen[results[0].ID] = true
			logs = append(logs, "[tmdb] unique full-name hit, accepting")
			break
		}
		for _, r := range results {
			if !seen[r.ID] {
				seen[r.ID] = true
				merged = append(merged, r)
			}
		}
	}

	if len(merged) == 0 {
		return nil, logs, fmt.Errorf("no candidates for %q/%q: %w", p.CNName, p.ENName, coreerrors.ErrNotFound)
	}

	if len(merged) > maxCandidates {
		merged = merged[:maxCandidates]
	}
	for i := range merged {
		merged[i].Score = scoring.ScoreCandidate(merged[i].candidate(), targets, i, p.AnimePriority)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	best := merged[0]
	lonely := len(seen) == 1
	logs = append(logs, fmt.Sprintf("[tmdb] best candidate %d (%s) scored %.1f", best.ID, best.DisplayTitle(), best.Score))
	if best.Score < acceptScore && !lonely {
		return nil, logs, fmt.Errorf("best score %.1f below threshold: %w", best.Score, coreerrors.ErrNotFound)
	}

	details, err := c.GetDetails(ctx, best.ID, best.MediaType, "")
	if err != nil {
		return nil, logs, err
	}
	details.Score = best.Score
	return details, logs, nil
}

// Refetch resolves an operator-forced id to its title and year. It
// satisfies the render engine's refetch hook.
func (c *Client) Refetch(ctx context.Context, tmdbID, mediaType string) (string, string, error) {
	id, err := strconv.Atoi(tmdbID)
	if err != nil {
		return "", "", fmt.Errorf("bad tmdb id %q: %w", tmdbID, err)
	}
	d, err := c.GetDetails(ctx, id, mediaType, "")
	if err != nil {
		return "", "", err
	}
	return d.DisplayTitle(), d.Year(), nil
}
