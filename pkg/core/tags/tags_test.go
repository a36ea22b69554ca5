package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChineseToNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"一", 1},
		{"二", 2},
		{"十", 10},
		{"十一", 11},
		{"二十", 20},
		{"二十五", 25},
		{"3", 3},
		{"III", 3},
		{"IV", 4},
		{"abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChineseToNumber(tt.in), "input %q", tt.in)
	}
}

func TestRomanToInt(t *testing.T) {
	assert.Equal(t, 4, RomanToInt("IV"))
	assert.Equal(t, 9, RomanToInt("IX"))
	assert.Equal(t, 12, RomanToInt("xii"))
	assert.Equal(t, 0, RomanToInt("MC"))
	assert.Equal(t, 0, RomanToInt("hello"))
}

func TestExtractYear(t *testing.T) {
	y, logs := ExtractYear("Evangelion (1995) BDRip")
	assert.Equal(t, "1995", y)
	assert.NotEmpty(t, logs)

	y, _ = ExtractYear("no year here 720")
	assert.Empty(t, y)
}

func TestExtractSeason(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Title S02 [01]", 2},
		{"某剧 第二季", 2},
		{"Title Season 3", 3},
		{"Title 2nd Season", 2},
		{"Overlord IV [01]", 4},
		{"Title Season III", 3},
		{"plain title", 0},
	}
	for _, tt := range tests {
		got, _ := ExtractSeason(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestValidateEpisodeMisfire(t *testing.T) {
	// 264 inside the codec token must not become an episode.
	ep, logs := ValidateEpisode("264", "[Group] Title x264 1080p.mkv")
	assert.Equal(t, 0, ep)
	assert.NotEmpty(t, logs)

	// 720 from the resolution token must not become an episode.
	ep, _ = ValidateEpisode("720", "Title 720p.mkv")
	assert.Equal(t, 0, ep)

	// But an explicit marker keeps it.
	ep, _ = ValidateEpisode("720", "Title EP720 720p.mkv")
	assert.Equal(t, 720, ep)

	// A word ending in "e" right before the number is not a marker.
	ep, _ = ValidateEpisode("720", "Some Movie 720p.mkv")
	assert.Equal(t, 0, ep)

	ep, _ = ValidateEpisode("05", "[Group] Title - 05.mkv")
	assert.Equal(t, 5, ep)
}

func TestExtractEpisode(t *testing.T) {
	ep, _ := ExtractEpisode("Title E07 1080p", "Title E07 1080p")
	assert.Equal(t, 7, ep)

	ep, _ = ExtractEpisode("第 12 集", "第 12 集")
	assert.Equal(t, 12, ep)

	ep, _ = ExtractEpisode("Title [08]", "Title [08]")
	assert.Equal(t, 8, ep)

	ep, _ = ExtractEpisode("nothing here", "nothing here")
	assert.Equal(t, 0, ep)
}

func TestExtractResolution(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Title 2160p HDR", "4K"},
		{"Title [4K]", "4K"},
		{"Title 1080p", "1080P"},
		{"Title_720P_AAC", "720P"},
		{"Title 1920x1080", "1080P"},
		{"Title 3840x2160", "4K"},
		{"Title 1024x576", "576P"},
		{"Title no res", ""},
	}
	for _, tt := range tests {
		got, _ := ExtractResolution(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestExtractVideoCodec(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Title x265 10bit", "H.265"},
		{"Title HEVC-10bit", "H.265"},
		{"Title H.264", "H.264"},
		{"Title AVC AAC", "H.264"},
		{"Title AV1 opus", "AV1"},
		{"Title nothing", ""},
	}
	for _, tt := range tests {
		got, _ := ExtractVideoCodec(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestExtractAudioCodec(t *testing.T) {
	got, _ := ExtractAudioCodec("Title FLAC AAC")
	assert.Equal(t, "FLAC AAC", got)

	got, _ = ExtractAudioCodec("Title DDP5.1 Atmos")
	assert.Equal(t, "Dolby Atmos E-AC-3 5.1", got)

	got, _ = ExtractAudioCodec("Title AAC_2ch")
	assert.Equal(t, "AAC 2.0", got)

	got, _ = ExtractAudioCodec("Title TrueHD 7.1")
	assert.Equal(t, "TrueHD 7.1", got)

	got, _ = ExtractAudioCodec("Title nothing")
	assert.Empty(t, got)
}

func TestExtractSource(t *testing.T) {
	got, _ := ExtractSource("Title UHD BluRay REMUX")
	assert.Equal(t, "UHD.Blu-ray.Remux", got)

	got, _ = ExtractSource("Title WEB-DL 1080p")
	assert.Equal(t, "WEB-DL", got)

	got, _ = ExtractSource("Title WEBRip BD")
	assert.Equal(t, "Blu-ray.WebRip", got)

	got, _ = ExtractSource("Title nothing")
	assert.Empty(t, got)
}

func TestExtractDynamicRange(t *testing.T) {
	got, _ := ExtractDynamicRange("Title DV HDR10 2160p")
	assert.Equal(t, "Dolby Vision.HDR10", got)

	got, _ = ExtractDynamicRange("Title Dolby Vision HLG")
	assert.Equal(t, "Dolby Vision.HLG", got)

	got, _ = ExtractDynamicRange("Title HDR10+ SDR")
	assert.Equal(t, "HDR10+.SDR", got)

	got, _ = ExtractDynamicRange("Title nothing")
	assert.Empty(t, got)
}

func TestExtractPlatform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[SubsPlease] Title (CR 1080p)", "Crunchyroll"},
		{"Title NF WEB-DL", "Netflix"},
		{"Title AMZN WEB-DL", "Amazon"},
		{"Title DSNP 1080p", "Disney+"},
		{"Title [Baha]", "Baha"},
		{"Title ATVP", "AppleTV+"},
		{"Title nothing", ""},
	}
	for _, tt := range tests {
		got, _ := ExtractPlatform(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestExtractSubtitleLang(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[Skymoon-Raws] Title [CHT]", "繁体内嵌"},
		{"[Group] Title [CHS_CHT]", "简繁内封"},
		{"[Group] Title 简日双语", "简日双语"},
		{"[Group] Title 简繁日内封", "简繁日内封"},
		{"[Group] Title [BIG5_MP4]", "繁体内嵌"},
		{"Title nothing at all", ""},
	}
	for _, tt := range tests {
		got, _ := ExtractSubtitleLang(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestIsValidGroup(t *testing.T) {
	assert.True(t, IsValidGroup("LoliHouse"))
	assert.True(t, IsValidGroup("VCB-Studio"))
	assert.True(t, IsValidGroup("ADE@AcgRip"))
	assert.False(t, IsValidGroup("A"))
	assert.False(t, IsValidGroup("12345"))
	assert.False(t, IsValidGroup("123@A"))
	assert.False(t, IsValidGroup("1234567x"))
}

func TestExtractReleaseGroup(t *testing.T) {
	g, _ := ExtractReleaseGroup("[LoliHouse] Title - 05 [WebRip].mkv", "")
	assert.Equal(t, "LoliHouse", g)

	// Parser hint wins when valid.
	g, _ = ExtractReleaseGroup("whatever.mkv", "SweetSub")
	assert.Equal(t, "SweetSub", g)

	// Platform word is never a group.
	g, _ = ExtractReleaseGroup("Title.1080p.NF.WEB-DL.mkv", "NF")
	assert.NotEqual(t, "NF", g)

	// Trailing -Group suffix.
	g, _ = ExtractReleaseGroup("Title.2023.1080p.BluRay.x264-SPARKS.mkv", "")
	assert.Equal(t, "SPARKS", g)

	// Technical token blocked.
	g, _ = ExtractReleaseGroup("Title.1080p-REMUX.mkv", "")
	assert.Empty(t, g)
}
