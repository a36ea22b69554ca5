package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	title, year string
	err         error
	gotID       string
	gotType     string
}

func (s *stubFetcher) Refetch(_ context.Context, tmdbID, mediaType string) (string, string, error) {
	s.gotID = tmdbID
	s.gotType = mediaType
	return s.title, s.year, s.err
}

func TestApplyOffsetRule(t *testing.T) {
	out := &Outcome{Filename: "[Group] Title - 30 [1080p].mkv", Episode: 30}
	logs := Apply(context.Background(), []string{"Title - <> [1080p >> EP-24"}, out, nil)

	assert.Equal(t, 6.0, out.Episode)
	assert.Contains(t, strings.Join(logs, "\n"), "renumbered 30 -> 6")
}

func TestApplyConditionalOverride(t *testing.T) {
	out := &Outcome{Filename: "x.mkv", TMDBID: "100", Type: "tv", Season: 1, Episode: 13}
	fetch := &stubFetcher{title: "别的剧", year: "2019"}

	logs := Apply(context.Background(), []string{"{[tmdbid=100;e=13-24]} => {[tmdbid=200;s=2;e=EP-12]}"}, out, fetch)

	assert.Equal(t, "200", out.TMDBID)
	assert.Equal(t, 2, out.Season)
	assert.Equal(t, 1.0, out.Episode)
	assert.Equal(t, "别的剧", out.Title)
	assert.Equal(t, "2019", out.Year)
	assert.Equal(t, "200", fetch.gotID)
	assert.Equal(t, "tv", fetch.gotType)
	assert.NotEmpty(t, logs)
}

func TestApplyConditionalNoMatch(t *testing.T) {
	out := &Outcome{TMDBID: "100", Episode: 5}
	Apply(context.Background(), []string{"{[tmdbid=100;e=13-24]} => {[s=2]}"}, out, nil)
	assert.Equal(t, 0, out.Season)
}

func TestApplyConditionalIncludes(t *testing.T) {
	out := &Outcome{Filename: "Title.2160p.HEVC.mkv", Type: "tv"}
	Apply(context.Background(), []string{"{[includes=2160p&(HEVC|H.265)]} => {[s=3]}"}, out, nil)
	assert.Equal(t, 3, out.Season)

	out = &Outcome{Filename: "Title.1080p.AVC.mkv", Type: "tv"}
	Apply(context.Background(), []string{"{[includes=2160p&(HEVC|H.265)]} => {[s=3]}"}, out, nil)
	assert.Equal(t, 0, out.Season)
}

func TestApplyConditionalTypeSwitch(t *testing.T) {
	out := &Outcome{Type: "movie", Year: "2020"}
	Apply(context.Background(), []string{"@{[type=movie;year=2020]} => {[type=tv;s=1;e=1]}"}, out, nil)

	assert.Equal(t, "tv", out.Type)
	assert.Equal(t, 1, out.Season)
	assert.Equal(t, 1.0, out.Episode)
}

func TestApplySubstitutionRule(t *testing.T) {
	out := &Outcome{CNName: "旧译名", Title: "旧译名", ENName: "Old Name"}
	logs := Apply(context.Background(), []string{"旧译名 => 新译名"}, out, nil)

	assert.Equal(t, "新译名", out.CNName)
	assert.Equal(t, "新译名", out.Title)
	assert.Equal(t, "Old Name", out.ENName)
	assert.NotEmpty(t, logs)
}

func TestApplyRuleIsolation(t *testing.T) {
	out := &Outcome{CNName: "某剧", Filename: "x"}
	logs := Apply(context.Background(), []string{
		"([broken => 新",
		"{[e=bogus-range]} => {[s=2]}",
		"某剧 => 某剧R",
	}, out, nil)

	assert.Equal(t, "某剧R", out.CNName)
	joined := strings.Join(logs, "\n")
	assert.Contains(t, joined, "bad pattern")
	assert.Contains(t, joined, "bad condition")
}

func TestApplyRemoteAndSkipped(t *testing.T) {
	out := &Outcome{Filename: "Title - 05", Episode: 5}
	logs := Apply(context.Background(), []string{
		"[REMOTE]Title - <> $ >> EP+1",
		"not a rule at all",
		"# comment",
	}, out, nil)

	joined := strings.Join(logs, "\n")
	assert.Contains(t, joined, "skipped")
	// Community rules keep working, just labelled differently.
	require.NotContains(t, joined, "panic")
}

func TestApplyRefetchFailureKeepsGoing(t *testing.T) {
	out := &Outcome{TMDBID: "100", Type: "movie", Title: "原名"}
	fetch := &stubFetcher{err: errors.New("upstream down")}

	logs := Apply(context.Background(), []string{"{[tmdbid=100]} => {[tmdbid=300]}"}, out, fetch)

	assert.Equal(t, "300", out.TMDBID)
	assert.Equal(t, "原名", out.Title)
	assert.Contains(t, strings.Join(logs, "\n"), "refetch failed")
}

func TestEvalIncludes(t *testing.T) {
	name := "show.1080p.hevc-lolihouse.mkv"

	ok, err := evalIncludes("1080p&HEVC", name)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evalIncludes("2160p|LoliHouse", name)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evalIncludes("2160p&(HEVC|AVC)", name)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = evalIncludes("(unclosed", name)
	assert.Error(t, err)
}

func TestEvalNumericFormulas(t *testing.T) {
	out := &Outcome{Episode: 25, Season: 2, Year: "2020"}

	n, err := evalNumeric("EP-12", out)
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	n, err = evalNumeric("S+1", out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = evalNumeric("7", out)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = evalNumeric("EP); DROP", out)
	assert.Error(t, err)
}
