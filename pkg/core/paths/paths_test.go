package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenSeasonFolder(t *testing.T) {
	h := Flatten("葬送的芙莉莲/Season 2/01.mkv", false)
	assert.Equal(t, "葬送的芙莉莲 Season 2 01.mkv", h.Name)
	assert.True(t, h.HasSeason)
	assert.Equal(t, 2, h.Season)
}

func TestFlattenShortSFolder(t *testing.T) {
	h := Flatten("Frieren/S01/E05.mkv", false)
	assert.Equal(t, "Frieren S01 E05.mkv", h.Name)
	assert.Equal(t, 1, h.Season)
}

func TestFlattenSelfContainedKeepsFilename(t *testing.T) {
	h := Flatten("library/Season 1/[SubsPlease] Sousou no Frieren - 01 (1080p).mkv", false)
	assert.Equal(t, "[SubsPlease] Sousou no Frieren - 01 (1080p).mkv", h.Name)
	assert.True(t, h.HasSeason)
	assert.Equal(t, 1, h.Season)
}

func TestFlattenSpecialsFolder(t *testing.T) {
	h := Flatten("某剧/Specials/01.mkv", false)
	assert.True(t, h.HasSeason)
	assert.Equal(t, 0, h.Season)
	assert.Equal(t, "某剧 Specials 01.mkv", h.Name)

	h = Flatten("某剧/NCOP/op1.mkv", false)
	assert.Equal(t, 0, h.Season)
}

func TestFlattenPinnedID(t *testing.T) {
	h := Flatten("葬送的芙莉莲 [tmdbid=209867]/Season 1/02.mkv", false)
	assert.Equal(t, "209867", h.TMDBID)
	// The pinned-id folder is dropped from the flattened name.
	assert.Equal(t, "Season 1 02.mkv", h.Name)
	assert.Equal(t, 1, h.Season)
}

func TestFlattenNonSeasonParentShortStem(t *testing.T) {
	h := Flatten("[桜都字幕组] 我独自升级/04.mkv", false)
	assert.Equal(t, "[桜都字幕组] 我独自升级 04.mkv", h.Name)
	assert.False(t, h.HasSeason)
}

func TestFlattenStrictModeLeavesSiblings(t *testing.T) {
	h := Flatten("[桜都字幕组] 我独自升级/04.mkv", true)
	assert.Equal(t, "04.mkv", h.Name)

	// Season folders still fold in strict mode.
	h = Flatten("我独自升级/Season 2/04.mkv", true)
	assert.Equal(t, "我独自升级 Season 2 04.mkv", h.Name)
}

func TestFlattenRedundantParentSkipped(t *testing.T) {
	h := Flatten("Show/Show.mkv", false)
	assert.Equal(t, "Show.mkv", h.Name)
}

func TestFlattenDistinctiveStemKept(t *testing.T) {
	h := Flatten("downloads/[ANi] 葬送的芙莉莲 - 07 [1080P].mp4", false)
	assert.Equal(t, "[ANi] 葬送的芙莉莲 - 07 [1080P].mp4", h.Name)
}

func TestFlattenBareName(t *testing.T) {
	h := Flatten("standalone.mkv", false)
	assert.Equal(t, "standalone.mkv", h.Name)
	assert.Empty(t, h.TMDBID)
	assert.False(t, h.HasSeason)
}

func TestFlattenWindowsSeparators(t *testing.T) {
	h := Flatten(`D:\anime\进击的巨人\Season 3\05.mkv`, false)
	assert.Equal(t, "进击的巨人 Season 3 05.mkv", h.Name)
	assert.Equal(t, 3, h.Season)
}
