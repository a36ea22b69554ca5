package bangumi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/angelospk/animatch/pkg/core/errors"
	"github.com/angelospk/animatch/pkg/core/tmdb"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	old := SetBaseURLForTesting(srv.URL)
	t.Cleanup(func() { SetBaseURLForTesting(old) })
	return NewClient("test-token")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchSubjectsRequestShape(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0/search/subjects", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("User-Agent"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "葬送的芙莉莲", req.Keyword)
		assert.Equal(t, []int{subjectTypeAnime}, req.Filter.Type)

		writeJSON(w, searchResponse{Data: []Subject{{ID: 400602, Name: "葬送のフリーレン", NameCN: "葬送的芙莉莲"}}})
	}))

	subjects, err := c.SearchSubjects(context.Background(), "葬送的芙莉莲")
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "葬送的芙莉莲", subjects[0].Title())
}

func TestGetSubjectDistillsInfobox(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/subjects/400602", r.URL.Path)
		writeJSON(w, map[string]any{
			"id": 400602, "name": "葬送のフリーレン", "name_cn": "葬送的芙莉莲",
			"date": "2023-09-29", "platform": "TV", "total_episodes": 28,
			"infobox": []map[string]any{
				{"key": "地区", "value": "日本"},
				{"key": "别名", "value": []map[string]any{{"v": "Frieren"}}},
				{"key": "放送星期", "value": "星期五"},
			},
			"images": map[string]any{"large": "https://img/large.jpg"},
		})
	}))

	s, err := c.GetSubject(context.Background(), 400602)
	require.NoError(t, err)
	assert.Equal(t, []string{"日本", "星期五"}, s.Genres)
	assert.Nil(t, s.Infobox)
	assert.Equal(t, "2023", s.Year())
	assert.Equal(t, "https://img/large.jpg", s.Image())
	assert.False(t, s.IsMovieLike())
}

func TestSearchBestExcludesMovieLikeForEpisodes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/search/subjects":
			writeJSON(w, searchResponse{Data: []Subject{{ID: 1}, {ID: 2}}})
		case "/v0/subjects/1":
			writeJSON(w, map[string]any{"id": 1, "name": "某剧 剧场版", "platform": "剧场版", "total_episodes": 1})
		case "/v0/subjects/2":
			writeJSON(w, map[string]any{"id": 2, "name": "某剧", "platform": "TV", "total_episodes": 24})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	s, logs, err := c.SearchBest(context.Background(), "某剧", "tv", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ID)
	assert.Contains(t, logs[1], "excluded")
}

func TestSearchBestForgivesFirstHitOverrun(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/search/subjects":
			writeJSON(w, searchResponse{Data: []Subject{{ID: 9}, {ID: 10}}})
		case "/v0/subjects/9":
			writeJSON(w, map[string]any{"id": 9, "name": "长篇剧", "platform": "TV", "total_episodes": 12})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	// Episode 30 overruns a 12-episode subject, but the top hit often
	// roots the whole franchise, so it stays.
	s, _, err := c.SearchBest(context.Background(), "长篇剧", "tv", 30)
	require.NoError(t, err)
	assert.Equal(t, 9, s.ID)
}

func TestSearchBestNoHits(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, searchResponse{})
	}))

	_, _, err := c.SearchBest(context.Background(), "不存在", "tv", 1)
	assert.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestGenerateSearchStrategies(t *testing.T) {
	subject := &Subject{Name: "進撃の巨人 Season 3", NameCN: "进击的巨人 第三季", Date: "2018-07-23"}
	strategies := GenerateSearchStrategies(subject, "")

	require.NotEmpty(t, strategies)
	assert.Equal(t, "進撃の巨人 Season 3", strategies[0].Query)
	assert.Equal(t, "2018", strategies[0].Year)

	// Truncated franchise bases come last, without a year pin.
	var queries []string
	for _, s := range strategies {
		queries = append(queries, s.Query)
	}
	assert.Contains(t, queries, "進撃の巨人")
	assert.Contains(t, queries, "进击的巨人")
}

func TestMapToTMDB(t *testing.T) {
	var gotQueries []string
	tmdbClient := func() *tmdb.Client {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/search/tv":
				gotQueries = append(gotQueries, r.URL.Query().Get("query"))
				writeJSON(w, map[string]any{"results": []map[string]any{{
					"id": 95269, "name": "葬送的芙莉莲", "original_name": "葬送のフリーレン",
					"first_air_date": "2023-09-29", "genre_ids": []int{16},
				}}})
			case "/tv/95269":
				writeJSON(w, map[string]any{"id": 95269, "name": "葬送的芙莉莲", "first_air_date": "2023-09-29"})
			default:
				t.Fatalf("unexpected tmdb path %s", r.URL.Path)
			}
		}))
		t.Cleanup(srv.Close)
		old := tmdb.SetBaseURLForTesting(srv.URL)
		t.Cleanup(func() { tmdb.SetBaseURLForTesting(old) })
		c, err := tmdb.NewClient("k")
		require.NoError(t, err)
		return c
	}()

	c := NewClient("")
	subject := &Subject{ID: 400602, Name: "葬送のフリーレン", NameCN: "葬送的芙莉莲", Date: "2023-09-29", Platform: "TV"}

	d, logs, err := c.MapToTMDB(context.Background(), tmdbClient, subject, "")
	require.NoError(t, err)
	assert.Equal(t, 95269, d.ID)
	assert.GreaterOrEqual(t, d.Score, mapAcceptScore)
	// The original Japanese name leads the strategy ladder.
	require.NotEmpty(t, gotQueries)
	assert.Equal(t, "葬送のフリーレン", gotQueries[0])
	assert.NotEmpty(t, logs)
}

func TestMapToTMDBNothingConvincing(t *testing.T) {
	tmdbClient := func() *tmdb.Client {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"results": []map[string]any{}})
		}))
		t.Cleanup(srv.Close)
		old := tmdb.SetBaseURLForTesting(srv.URL)
		t.Cleanup(func() { tmdb.SetBaseURLForTesting(old) })
		c, err := tmdb.NewClient("k")
		require.NoError(t, err)
		return c
	}()

	c := NewClient("")
	subject := &Subject{ID: 1, Name: "無名", Date: "2020-01-01"}

	_, _, err := c.MapToTMDB(context.Background(), tmdbClient, subject, "")
	assert.ErrorIs(t, err, coreerrors.ErrNotFound)
}
