// Package tmdb is a minimal TMDB v3 client covering what release
// matching needs: search with a year hint, detail fetches with cast,
// and the staged smart search that scores candidates as it goes.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/angelospk/animatch/internal/constants"
	coreerrors "github.com/angelospk/animatch/pkg/core/errors"
	"github.com/angelospk/animatch/pkg/core/scoring"
)

// Languages the matcher queries in: Chinese names search the zh
// catalog, latin names the en one.
const (
	LanguageChinese = "zh-CN"
	LanguageEnglish = "en-US"
)

// maxCastMembers caps the credits payload.
const maxCastMembers = 15

// baseURL is a variable to allow modification during tests.
var baseURL = constants.TMDBBaseURL

// SetBaseURLForTesting temporarily overrides the API base URL and
// returns the original so it can be restored.
func SetBaseURLForTesting(newURL string) string {
	oldURL := baseURL
	baseURL = newURL
	return oldURL
}

// SearchResult is one entry of a TMDB search page. Movie and tv
// payloads use different field names for the same concepts, hence the
// accessor methods.
type SearchResult struct {
	ID            int    `json:"id"`
	Title         string `json:"title,omitempty"`
	Name          string `json:"name,omitempty"`
	OriginalTitle string `json:"original_title,omitempty"`
	OriginalName  string `json:"original_name,omitempty"`
	ReleaseDate   string `json:"release_date,omitempty"`
	FirstAirDate  string `json:"first_air_date,omitempty"`
	GenreIDs      []int  `json:"genre_ids,omitempty"`

	// MediaType and Score are filled by the smart search, not the API.
	MediaType string  `json:"media_type,omitempty"`
	Score     float64 `json:"-"`
}

// DisplayTitle returns the localized title regardless of media type.
func (r *SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// OriginalDisplayTitle returns the original-language title.
func (r *SearchResult) OriginalDisplayTitle() string {
	if r.OriginalTitle != "" {
		return r.OriginalTitle
	}
	return r.OriginalName
}

// Year returns the four-digit release year, or "".
func (r *SearchResult) Year() string {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func (r *SearchResult) candidate() scoring.Candidate {
	return scoring.Candidate{
		ID:            r.ID,
		Title:         r.DisplayTitle(),
		OriginalTitle: r.OriginalDisplayTitle(),
		Year:          r.Year(),
		MediaType:     r.MediaType,
		GenreIDs:      r.GenreIDs,
	}
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// CastMember is a simplified credits entry.
type CastMember struct {
	Character string `json:"character"`
	Actor     string `json:"actor"`
	Image     string `json:"image,omitempty"`
}

type rawCastMember struct {
	Character   string `json:"character"`
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
}

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Details is a full movie/tv record with flattened credits.
type Details struct {
	ID               int     `json:"id"`
	Title            string  `json:"title,omitempty"`
	Name             string  `json:"name,omitempty"`
	OriginalTitle    string  `json:"original_title,omitempty"`
	OriginalName     string  `json:"original_name,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	FirstAirDate     string  `json:"first_air_date,omitempty"`
	NumberOfEpisodes int     `json:"number_of_episodes,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	PosterPath       string  `json:"poster_path,omitempty"`
	Genres           []genre `json:"genres,omitempty"`
	Credits          *struct {
		Cast []rawCastMember `json:"cast"`
	} `json:"credits,omitempty"`

	MediaType string       `json:"media_type,omitempty"`
	Cast      []CastMember `json:"cast,omitempty"`
	Score     float64      `json:"-"`
}

// DisplayTitle returns the localized title regardless of media type.
func (d *Details) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Year returns the four-digit release year, or "".
func (d *Details) Year() string {
	date := d.ReleaseDate
	if date == "" {
		date = d.FirstAirDate
	}
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

// Client handles communication with the TMDB API.
type Client struct {
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewClient creates a TMDB client. The api key is required; language
// defaults to zh-CN because the recognizer's primary vocabulary is
// Chinese fansub naming.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tmdb: %w", coreerrors.ErrMissingCredentials)
	}
	return &Client{
		apiKey:     apiKey,
		language:   LanguageChinese,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// SetProxy routes all requests through an HTTP proxy.
func (c *Client) SetProxy(proxyURL string) error {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("tmdb: bad proxy url: %w", err)
	}
	c.httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, into any) error {
	// 1. Construct URL
	reqURL, err := url.Parse(baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse tmdb URL: %w", err)
	}
	query.Set("api_key", c.apiKey)
	reqURL.RawQuery = query.Encode()

	// 2. Create and execute request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create tmdb request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute tmdb request: %w", err)
	}
	defer resp.Body.Close()

	// 3. Handle non-200 responses
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("tmdb %s: %w", path, coreerrors.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb %s returned non-OK status: %s", path, resp.Status)
	}

	// 4. Decode JSON response
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode tmdb response: %w", err)
	}
	return nil
}

// Search queries /search/{movie|tv}. A year hint narrows the search
// first; if that yields nothing the query is retried without it, since
// fansub years are frequently the season's year rather than the
// show's.
func (c *Client) Search(ctx context.Context, query, mediaType, year, language string) ([]SearchResult, error) {
	if language == "" {
		language = c.language
	}
	mt := normalizeMediaType(mediaType)

	doSearch := func(withYear bool) ([]SearchResult, error) {
		q := url.Values{}
		q.Set("query", query)
		q.Set("language", language)
		q.Set("include_adult", "false")
		if withYear && year != "" {
			if mt == "movie" {
				q.Set("year", year)
			} else {
				q.Set("first_air_date_year", year)
			}
		}
		var page searchResponse
		if err := c.get(ctx, "/search/"+mt, q, &page); err != nil {
			return nil, err
		}
		for i := range page.Results {
			page.Results[i].MediaType = mt
		}
		return page.Results, nil
	}

	results, err := doSearch(true)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && year != "" {
		return doSearch(false)
	}
	return results, nil
}

// GetDetails fetches /{movie|tv}/{id} with credits appended. The cast
// list is truncated and flattened into Details.Cast.
func (c *Client) GetDetails(ctx context.Context, id int, mediaType, language string) (*Details, error) {
	if language == "" {
		language = c.language
	}
	mt := normalizeMediaType(mediaType)

	q := url.Values{}
	q.Set("language", language)
	q.Set("append_to_response", "credits")

	var d Details
	if err := c.get(ctx, "/"+mt+"/"+strconv.Itoa(id), q, &d); err != nil {
		return nil, err
	}
	d.MediaType = mt
	if d.Credits != nil {
		cast := d.Credits.Cast
		if len(cast) > maxCastMembers {
			cast = cast[:maxCastMembers]
		}
		for _, m := range cast {
			d.Cast = append(d.Cast, CastMember{Character: m.Character, Actor: m.Name, Image: m.ProfilePath})
		}
		d.Credits = nil
	}
	return &d, nil
}

func normalizeMediaType(mt string) string {
	if mt == "movie" {
		return "movie"
	}
	return "tv"
}
