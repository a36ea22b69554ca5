// Package bangumi is a minimal bgm.tv v0 client. Bangumi is the
// authority on Japanese anime naming; it is queried when TMDB cannot
// match a fansub title directly, and its subjects are then mapped back
// onto TMDB entries.
package bangumi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelospk/animatch/internal/constants"
	coreerrors "github.com/angelospk/animatch/pkg/core/errors"
)

// subjectTypeAnime is bgm.tv's subject type for anime.
const subjectTypeAnime = 2

// verifyTopN caps how many search hits get a detail fetch during
// candidate verification.
const verifyTopN = 3

// baseURL is a variable to allow modification during tests.
var baseURL = constants.BangumiBaseURL

// SetBaseURLForTesting temporarily overrides the API base URL and
// returns the original so it can be restored.
func SetBaseURLForTesting(newURL string) string {
	oldURL := baseURL
	baseURL = newURL
	return oldURL
}

// movieLikePlatforms are subject platforms that denote a theatrical
// release rather than a broadcast series.
var movieLikePlatforms = map[string]bool{"剧场版": true, "劇場版": true, "Movie": true, "movie": true}

type subjectTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type subjectImages struct {
	Large  string `json:"large"`
	Common string `json:"common"`
}

type infoboxItem struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Subject is a bgm.tv catalog entry.
type Subject struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	NameCN        string        `json:"name_cn"`
	Date          string        `json:"date"`
	Platform      string        `json:"platform"`
	TotalEpisodes int           `json:"total_episodes"`
	Eps           int           `json:"eps"`
	Summary       string        `json:"summary"`
	Tags          []subjectTag  `json:"tags"`
	Images        subjectImages `json:"images"`
	Infobox       []infoboxItem `json:"infobox,omitempty"`

	// Genres is distilled from the infobox (region, air day).
	Genres []string `json:"genres,omitempty"`
}

// Title returns the Chinese name when the catalog has one.
func (s *Subject) Title() string {
	if s.NameCN != "" {
		return s.NameCN
	}
	return s.Name
}

// Year returns the four-digit air year, or "".
func (s *Subject) Year() string {
	if len(s.Date) >= 4 {
		return s.Date[:4]
	}
	return ""
}

// Image returns the best available cover image URL.
func (s *Subject) Image() string {
	if s.Images.Large != "" {
		return s.Images.Large
	}
	return s.Images.Common
}

// IsMovieLike reports whether the subject denotes a theatrical film.
func (s *Subject) IsMovieLike() bool {
	return movieLikePlatforms[s.Platform] ||
		strings.Contains(s.Name, "剧场版") ||
		strings.Contains(s.Name, "劇場版")
}

type searchRequest struct {
	Keyword string `json:"keyword"`
	Filter  struct {
		Type []int `json:"type"`
	} `json:"filter"`
}

type searchResponse struct {
	Data []Subject `json:"data"`
}

// Client handles communication with the bgm.tv API.
type Client struct {
	token      string
	httpClient *http.Client
}

// NewClient creates a bgm.tv client. The token is optional; without it
// NSFW-restricted subjects are simply invisible.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetProxy routes all requests through an HTTP proxy.
func (c *Client) SetProxy(proxyURL string) error {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("bangumi: bad proxy url: %w", err)
	}
	c.httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, into any) error {
	// 1. Encode request body, if any
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode bangumi request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	// 2. Create request with the identification the API requires
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create bangumi request: %w", err)
	}
	req.Header.Set("User-Agent", constants.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// 3. Execute
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute bangumi request: %w", err)
	}
	defer resp.Body.Close()

	// 4. Handle non-200 responses
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("bangumi %s: %w", path, coreerrors.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bangumi %s returned non-OK status: %s", path, resp.Status)
	}

	// 5. Decode
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode bangumi response: %w", err)
	}
	return nil
}

// SearchSubjects queries the v0 search endpoint, restricted to anime.
func (c *Client) SearchSubjects(ctx context.Context, keyword string) ([]Subject, error) {
	reqBody := searchRequest{Keyword: keyword}
	reqBody.Filter.Type = []int{subjectTypeAnime}

	var page searchResponse
	if err := c.do(ctx, http.MethodPost, "/v0/search/subjects", reqBody, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// infoboxGenreKeys are the infobox entries worth keeping as genre-like
// facts.
var infoboxGenreKeys = map[string]bool{"地区": true, "产地": true, "放送星期": true}

// GetSubject fetches full details for one subject and distills its
// infobox.
func (c *Client) GetSubject(ctx context.Context, id int) (*Subject, error) {
	var s Subject
	if err := c.do(ctx, http.MethodGet, "/v0/subjects/"+strconv.Itoa(id), nil, &s); err != nil {
		return nil, err
	}
	for _, item := range s.Infobox {
		if !infoboxGenreKeys[item.Key] {
			continue
		}
		var v string
		if err := json.Unmarshal(item.Value, &v); err == nil && v != "" {
			s.Genres = append(s.Genres, v)
		}
	}
	s.Infobox = nil
	return &s, nil
}

// SearchBest searches and verifies candidates against what the
// filename told us. Verification excludes entries whose shape cannot
// fit: a movie-like subject for a mid-season episode, or a subject
// with far fewer episodes than the one in hand.
func (c *Client) SearchBest(ctx context.Context, keyword, expectedType string, currentEpisode float64) (*Subject, []string, error) {
	var logs []string

	hits, err := c.SearchSubjects(ctx, keyword)
	if err != nil {
		return nil, logs, err
	}
	logs = append(logs, fmt.Sprintf("[bangumi] %q: %d hit(s)", keyword, len(hits)))
	if len(hits) == 0 {
		return nil, logs, fmt.Errorf("no subjects for %q: %w", keyword, coreerrors.ErrNotFound)
	}

	top := hits
	if len(top) > verifyTopN {
		top = top[:verifyTopN]
	}
	for idx := range top {
		subject, err := c.GetSubject(ctx, top[idx].ID)
		if err != nil {
			logs = append(logs, fmt.Sprintf("[bangumi] subject %d detail fetch failed: %v", top[idx].ID, err))
			continue
		}

		if expectedType == "tv" && currentEpisode > 1 &&
			(subject.IsMovieLike() || subject.TotalEpisodes == 1) {
			logs = append(logs, fmt.Sprintf("[bangumi] %s excluded: movie-like shape for episode %.0f", subject.Title(), currentEpisode))
			continue
		}
		// An episode far past the subject's run means a different
		// season; the first hit is forgiven since seasons often share
		// one subject tree.
		if subject.TotalEpisodes > 0 && currentEpisode > float64(subject.TotalEpisodes+5) &&
			idx != 0 && len(top) > 1 {
			logs = append(logs, fmt.Sprintf("[bangumi] %s excluded: only %d episode(s)", subject.Title(), subject.TotalEpisodes))
			continue
		}

		logs = append(logs, fmt.Sprintf("[bangumi] verified subject %d: %s", subject.ID, subject.Title()))
		return subject, logs, nil
	}
	return nil, logs, fmt.Errorf("all candidates for %q excluded: %w", keyword, coreerrors.ErrNotFound)
}
