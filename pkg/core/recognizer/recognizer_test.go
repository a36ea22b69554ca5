package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelospk/animatch/pkg/core/batch"
	coreerrors "github.com/angelospk/animatch/pkg/core/errors"
)

// stubParser pins the external-parser stage so pipeline behavior can
// be tested independently of go-ptn's heuristics.
type stubParser struct{ res ParseResult }

func (s stubParser) Parse(string) ParseResult { return s.res }

// captureParser records what the pipeline fed the parser.
type captureParser struct {
	got *string
	res ParseResult
}

func (c captureParser) Parse(name string) ParseResult {
	*c.got = name
	return c.res
}

func TestRecognizeStandardFansubRelease(t *testing.T) {
	rec, tr := Recognize("[桜都字幕组] 葬送的芙莉莲 / Sousou no Frieren [07][1080p][简日内封]", Options{
		Parser: stubParser{ParseResult{Title: "葬送的芙莉莲 Sousou no Frieren", Episodes: []float64{7}}},
	})

	assert.Equal(t, "葬送的芙莉莲", rec.CNName)
	assert.Equal(t, "Sousou no Frieren", rec.ENName)
	assert.Equal(t, 7.0, rec.Episode)
	assert.Equal(t, MediaTypeTV, rec.Type)
	assert.Equal(t, 1, rec.Season)
	assert.Equal(t, "1080P", rec.Resolution)
	assert.Equal(t, "桜都字幕组", rec.ReleaseGroup)
	assert.Equal(t, "简日内封", rec.SubtitleLang)
	assert.Positive(t, tr.Len())
}

func TestRecognizeForcedMetaWins(t *testing.T) {
	rec, _ := Recognize("[Group] Weird Name - 05.mkv", Options{
		CustomWords: []string{"Weird Name => {[tmdbid=12345;type=movie]}"},
		Parser:      stubParser{ParseResult{Title: "Weird Name", Episodes: []float64{5}}},
	})

	assert.Equal(t, "12345", rec.ForcedTMDBID)
	assert.Equal(t, MediaTypeMovie, rec.Type)
	assert.Equal(t, 5.0, rec.Episode)
}

func TestRecognizeForcedSeasonZero(t *testing.T) {
	rec, _ := Recognize("Show Specials - 03.mkv", Options{
		CustomWords: []string{`Show Specials => {[s=0]}`},
		Parser:      stubParser{ParseResult{Title: "Show Specials", Episodes: []float64{3}}},
	})

	assert.True(t, rec.HasSeason)
	assert.Equal(t, 0, rec.Season)
	assert.Equal(t, MediaTypeTV, rec.Type)
}

func TestRecognizeEpisodeRange(t *testing.T) {
	rec, _ := Recognize("[Group] Title [01-12] 合集", Options{
		Parser: stubParser{ParseResult{Title: "Title", Episodes: []float64{1, 12}, RangeHint: true}},
	})

	assert.True(t, rec.IsBatch)
	assert.Equal(t, 1.0, rec.Episode)
	assert.Equal(t, 12.0, rec.EndEpisode)
	assert.Equal(t, MediaTypeTV, rec.Type)
}

func TestRecognizeConflictingNumbersTakeFirst(t *testing.T) {
	rec, _ := Recognize("[Group] Title - 05 1080", Options{
		Parser: stubParser{ParseResult{Title: "Title", Episodes: []float64{5, 1080}}},
	})

	assert.Equal(t, 5.0, rec.Episode)
	assert.False(t, rec.IsBatch)
}

func TestRecognizeHalfNumberedSpecial(t *testing.T) {
	rec, _ := Recognize("[Group] Title - 24.5 [1080p]", Options{
		Parser: stubParser{ParseResult{Title: "Title", Episodes: []float64{24.5}}},
	})

	assert.Equal(t, 24.5, rec.Episode)
	assert.Equal(t, MediaTypeTV, rec.Type)
}

func TestRecognizeYearMistakenAsEpisode(t *testing.T) {
	rec, _ := Recognize("Mononoke.Hime.1997.1080p.BluRay.x264", Options{
		Parser: stubParser{ParseResult{Title: "Mononoke Hime", Episodes: []float64{1997}}},
	})

	assert.Equal(t, MediaTypeMovie, rec.Type)
	assert.Equal(t, "1997", rec.Year)
	assert.False(t, rec.HasEpisode)
	assert.Equal(t, "Mononoke Hime", rec.ENName)
}

func TestRecognizeJointReleaseCustomGroups(t *testing.T) {
	var fed string
	rec, _ := Recognize("【喵萌奶茶屋&LoliHouse】葬送的芙莉莲 - 07", Options{
		CustomGroups: []string{"喵萌奶茶屋"},
		Parser:       captureParser{got: &fed, res: ParseResult{Title: "葬送的芙莉莲", Episodes: []float64{7}}},
	})

	assert.Equal(t, "喵萌奶茶屋&LoliHouse", rec.ReleaseGroup)
	assert.Equal(t, "葬送的芙莉莲 07", fed)
	assert.Equal(t, "葬送的芙莉莲", rec.CNName)
	assert.Equal(t, 7.0, rec.Episode)
}

func TestRecognizeBracketTitleRescue(t *testing.T) {
	rec, _ := Recognize("[Skymoon-Raws] [我独自升级] [05][1080p]", Options{
		Parser: stubParser{ParseResult{Title: "MOVIE"}},
	})

	assert.Equal(t, "Skymoon-Raws", rec.ReleaseGroup)
	assert.Equal(t, "我独自升级", rec.CNName)
	assert.Equal(t, 5.0, rec.Episode)
	assert.Equal(t, MediaTypeTV, rec.Type)
}

func TestRecognizeLeadingGroupWord(t *testing.T) {
	rec, _ := Recognize("桜都字幕组 转生史莱姆日记 第03话", Options{
		Parser: stubParser{ParseResult{Title: "转生史莱姆日记"}},
	})

	assert.Equal(t, "桜都字幕组", rec.ReleaseGroup)
	assert.Equal(t, 3.0, rec.Episode)
	assert.Equal(t, "转生史莱姆日记", rec.CNName)
}

func TestRecognizePrivilegedRule(t *testing.T) {
	rules := batch.ParseSpecialRules([]string{
		`^\[(MyGroup)\]\s+(.+?)\s+-\s+(\d{1,4})|||1|||2|||3|||MyGroup shape`,
	})
	rec, _ := Recognize("[MyGroup] Fancy Show - 07 [1080p].mkv", Options{
		SpecialRules: rules,
		Parser:       stubParser{ParseResult{Title: "garbage"}},
	})

	assert.Equal(t, "MyGroup", rec.ReleaseGroup)
	assert.Equal(t, "Fancy Show", rec.ENName)
	assert.Equal(t, 7.0, rec.Episode)
}

func TestRecognizeBatchEnhancement(t *testing.T) {
	rec, _ := Recognize("[Group] Title [01-13Fin][1080p]", Options{
		BatchEnhancement: true,
		Parser:           stubParser{ParseResult{Title: "Title"}},
	})

	assert.True(t, rec.IsBatch)
	assert.Equal(t, 1.0, rec.Episode)
	assert.Equal(t, 13.0, rec.EndEpisode)
	assert.Equal(t, MediaTypeTV, rec.Type)
	assert.Equal(t, 1, rec.Season)
}

func TestRecognizeDashEpisodeSurvivesCleaning(t *testing.T) {
	rec, _ := Recognize("[LoliHouse] Title Name - 01 [WebRip 1080p HEVC-10bit AAC][简繁内封].mkv", Options{})

	assert.Equal(t, 1.0, rec.Episode)
	assert.Equal(t, MediaTypeTV, rec.Type)
	assert.Equal(t, 1, rec.Season)
	assert.Equal(t, "Title Name", rec.ENName)
	assert.Equal(t, "1080P", rec.Resolution)
	assert.NotContains(t, rec.ProcessedName, "简繁内封")
}

func TestRecognizeBareRangeCollection(t *testing.T) {
	rec, _ := Recognize("[SomeGroup] 01-12 合集 [BDRip]", Options{BatchEnhancement: true})

	assert.True(t, rec.IsBatch)
	assert.Equal(t, 1.0, rec.Episode)
	assert.Equal(t, 12.0, rec.EndEpisode)
	assert.Equal(t, MediaTypeTV, rec.Type)
	assert.Equal(t, "SomeGroup", rec.ReleaseGroup)
}

func TestRecognizeSeasonDefaultMarked(t *testing.T) {
	rec, _ := Recognize("[Group] Title - 07 [1080p]", Options{
		Parser: stubParser{ParseResult{Title: "Title", Episodes: []float64{7}}},
	})
	assert.Equal(t, 1, rec.Season)
	assert.True(t, rec.SeasonDefaulted)

	rec, _ = Recognize("[Group] Title S2 - 07 [1080p]", Options{
		Parser: stubParser{ParseResult{Title: "Title", Season: 2, Episodes: []float64{7}}},
	})
	assert.Equal(t, 2, rec.Season)
	assert.False(t, rec.SeasonDefaulted)
}

func TestRecognizeFingerprintSkipsSplit(t *testing.T) {
	rec, _ := Recognize("whatever-shape-01.mkv", Options{
		Fingerprint: &Fingerprint{Title: "芙莉莲", OriginalTitle: "Frieren"},
		Parser:      stubParser{ParseResult{Title: "whatever shape", Episodes: []float64{1}}},
	})

	assert.Equal(t, "芙莉莲", rec.CNName)
	assert.Equal(t, "Frieren", rec.ENName)
	assert.Equal(t, 1.0, rec.Episode)
}

func TestRecognizeSpecSync(t *testing.T) {
	rec, _ := Recognize("Title.E05.720p.HDTV.H.264.AAC-Lilith.mkv", Options{
		Parser: stubParser{ParseResult{}},
	})

	assert.Equal(t, "720P", rec.Resolution)
	assert.Equal(t, "HDTV", rec.Source)
	assert.Equal(t, "H.264", rec.VideoCodec)
	assert.Equal(t, "AAC", rec.AudioCodec)
	assert.Equal(t, "Lilith", rec.ReleaseGroup)
	assert.Equal(t, 5.0, rec.Episode)
	assert.Equal(t, MediaTypeTV, rec.Type)
}

func TestRecognizeTechnicalTokenNeverSurvivesAsGroup(t *testing.T) {
	rec, _ := Recognize("Some.Movie.2021.2160p.WEB-DL", Options{
		Parser: stubParser{ParseResult{Title: "Some Movie", ReleaseGroup: "WEB-DL"}},
	})

	assert.Empty(t, rec.ReleaseGroup)
	assert.Equal(t, MediaTypeMovie, rec.Type)
	assert.Equal(t, "2021", rec.Year)
	assert.Equal(t, "4K", rec.Resolution)
}

func TestRecognizeEpisodeRescuedFromGroupToken(t *testing.T) {
	rec, _ := Recognize("[Group] Plain Title [04]", Options{
		Parser: stubParser{ParseResult{Title: "Plain Title", ReleaseGroup: "04"}},
	})

	assert.Equal(t, 4.0, rec.Episode)
	assert.Equal(t, MediaTypeTV, rec.Type)
}

func TestApplyForcedFieldUnknownKey(t *testing.T) {
	var f ForcedMeta
	err := f.ApplyField("bogus", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, coreerrors.ErrUnknownForcedField)

	require.NoError(t, f.ApplyField("type", "MOVIE"))
	assert.Equal(t, MediaTypeMovie, f.Type)
}

func TestRecordTitlePrecedence(t *testing.T) {
	r := &Record{CNName: "中文名", ENName: "English", ProcessedName: "processed"}
	assert.Equal(t, "中文名", r.Title())
	assert.Equal(t, "中文名|", r.PatternKey())

	r.CNName = ""
	assert.Equal(t, "English", r.Title())

	r.ENName = ""
	r.Year = "2024"
	assert.Equal(t, "processed", r.Title())
	assert.Equal(t, "processed|2024", r.PatternKey())
}

func TestPTNParserNeverPanics(t *testing.T) {
	res := PTNParser{}.Parse("")
	assert.Empty(t, res.Title)

	assert.NotPanics(t, func() {
		PTNParser{}.Parse("【】[[[]]]]〕〔 - - - ")
	})
}

func TestPTNParserRangeHint(t *testing.T) {
	res := PTNParser{}.Parse("[Group] 01-12 合集")
	assert.True(t, res.RangeHint)
	assert.Equal(t, []float64{1, 12}, res.Episodes)

	// A resolution or codec fragment never reads as a span.
	res = PTNParser{}.Parse("Title.S01E05.1080p.x264-10bit.mkv")
	assert.False(t, res.RangeHint)
}
