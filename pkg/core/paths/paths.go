// Package paths folds directory context into a recognizable name.
// Media libraries carry real information in their folder structure
// (series title, season, pinned TMDB ids) that a bare episode filename
// like "01.mkv" lacks, so flattening runs before recognition.
package paths

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/patterns"
)

// Hint is the flattened name plus whatever the directory tree pinned.
type Hint struct {
	Name      string
	TMDBID    string
	Season    int
	HasSeason bool
	Logs      []string
}

var (
	// tmdbMarker matches operator-pinned ids like "[tmdbid=209867]"
	// or "tmdb-209867" anywhere in the path.
	tmdbMarker = regexp2.MustCompile(`tmdb(?:id)?\s*[=\-]\s*(\d+)`, regexp2.IgnoreCase)

	// seasonDir matches library season folders: "Season 2", "S02".
	seasonDir = regexp2.MustCompile(`^(?:Season|S)\s*(\d+)$`, regexp2.IgnoreCase)

	// bareStem matches stems made only of episode-ish filler, which
	// cannot identify a series on their own.
	bareStem = regexp2.MustCompile(`^[\d\s\.EepS\-]+$`, regexp2.None)
)

// specialDirs are folders whose contents belong to season zero.
var specialDirs = map[string]bool{"specials": true, "ova": true, "ncop": true, "nced": true}

// selfContained reports whether a stem is long and distinctive enough
// to recognize without its parent directories.
func selfContained(stem string) bool {
	n := len([]rune(stem))
	if n > 15 {
		return true
	}
	return n > 8 && !patterns.Match(bareStem, stem)
}

// stripDigits removes digits and separator filler for the shortness
// check: "EP 04" normalizes to "EP".
func stripDigits(stem string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ' ' || r == '.' || r == '-' || r == '_' {
			return -1
		}
		return r
	}, stem)
}

// Flatten inspects the directory components of path and returns a name
// enriched with series and season context. In strict mode only season
// folders are folded in; sibling directories are left alone.
func Flatten(path string, strict bool) Hint {
	var h Hint

	clean := strings.ReplaceAll(path, `\`, "/")
	var segments []string
	for _, seg := range strings.Split(clean, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return h
	}

	file := segments[len(segments)-1]
	h.Name = file
	stem := strings.TrimSuffix(file, filepath.Ext(file))

	if m := patterns.FindMatch(tmdbMarker, clean); m != nil {
		h.TMDBID = patterns.Group(m, 1)
		h.Logs = append(h.Logs, fmt.Sprintf("path pins tmdb id %s", h.TMDBID))
	}

	var parent, grandparent string
	if len(segments) >= 2 {
		parent = segments[len(segments)-2]
	}
	if len(segments) >= 3 {
		grandparent = segments[len(segments)-3]
	}
	if parent == "" {
		return h
	}

	if m := patterns.FindMatch(seasonDir, parent); m != nil || specialDirs[strings.ToLower(parent)] {
		if m != nil {
			h.Season, _ = strconv.Atoi(patterns.Group(m, 1))
		}
		h.HasSeason = true
		h.Logs = append(h.Logs, fmt.Sprintf("season folder %q -> season %d", parent, h.Season))

		if selfContained(stem) {
			return h
		}
		// A pinned-id folder name is noise, not a title; the id itself
		// was already captured above.
		if grandparent != "" && !patterns.Match(tmdbMarker, grandparent) {
			h.Name = grandparent + " " + parent + " " + file
		} else {
			h.Name = parent + " " + file
		}
		h.Logs = append(h.Logs, fmt.Sprintf("flattened to %q", h.Name))
		return h
	}

	if strict {
		return h
	}

	short := len([]rune(stem)) < 5 || len([]rune(stripDigits(stem))) < 3
	redundant := strings.Contains(strings.ToLower(stem), strings.ToLower(parent))
	if short && !redundant && !patterns.Match(tmdbMarker, parent) {
		h.Name = parent + " " + file
		h.Logs = append(h.Logs, fmt.Sprintf("folded parent folder into %q", h.Name))
	}
	return h
}
