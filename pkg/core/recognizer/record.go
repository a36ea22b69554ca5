// Package recognizer turns a raw release filename into a structured
// media record through a staged pipeline: operator pre-clean, tag
// probing, noise shielding, an external name parser, and a
// post-processing pass that reconciles whatever the stages disagree on.
package recognizer

import (
	"fmt"
	"strconv"
	"strings"

	coreerrors "github.com/angelospk/animatch/pkg/core/errors"
)

// MediaType is the resolved category of a release.
type MediaType string

const (
	MediaTypeUnknown MediaType = "unknown"
	MediaTypeMovie   MediaType = "movie"
	MediaTypeTV      MediaType = "tv"
)

// Record is the structured result of recognizing one filename.
// Episode numbers are float64 so half-numbered specials (24.5)
// survive; HasSeason/HasEpisode distinguish "season 0" (specials)
// from "no season found". SeasonDefaulted marks a season 1 that was
// assumed for a TV record rather than read from the name, so callers
// with outside knowledge (a Season directory, a description) may still
// override it.
type Record struct {
	CNName          string    `json:"cn_name"`
	OriginalCNName  string    `json:"original_cn_name"`
	ENName          string    `json:"en_name"`
	PrivilegedTitle string    `json:"-"`
	Year            string    `json:"year"`
	Type            MediaType `json:"type"`
	Season          int       `json:"season"`
	HasSeason       bool      `json:"-"`
	SeasonDefaulted bool      `json:"-"`
	Episode         float64   `json:"episode"`
	HasEpisode      bool      `json:"-"`
	EndEpisode      float64   `json:"end_episode"`
	IsBatch         bool      `json:"is_batch"`
	ReleaseGroup    string    `json:"resource_team"`
	Resolution      string    `json:"resolution"`
	Source          string    `json:"source"`
	VideoCodec      string    `json:"video_codec"`
	VideoEffect     string    `json:"video_effect"`
	AudioCodec      string    `json:"audio_codec"`
	DynamicRange    string    `json:"dynamic_range"`
	Platform        string    `json:"platform"`
	SubtitleLang    string    `json:"subtitle_lang"`
	ForcedTMDBID    string    `json:"forced_tmdbid"`
	ProcessedName   string    `json:"processed_name"`
}

// Title returns the best display title in precedence order.
func (r *Record) Title() string {
	switch {
	case r.CNName != "":
		return r.CNName
	case r.ENName != "":
		return r.ENName
	default:
		return r.ProcessedName
	}
}

// PatternKey is the memory key for this record: title plus year, so
// different seasons of one show share a remembered match.
func (r *Record) PatternKey() string {
	return fmt.Sprintf("%s|%s", r.Title(), r.Year)
}

// ForcedMeta carries operator-forced fields extracted by pre-clean
// rules ({[tmdbid=123;type=tv;s=2;e=5]}). Forced values always win
// over recognized ones.
type ForcedMeta struct {
	TMDBID     string
	Type       MediaType
	HasType    bool
	Season     int
	HasSeason  bool
	Episode    float64
	HasEpisode bool
}

// ApplyField sets one forced field from its key/value pair. The field
// set is closed: unknown keys return ErrUnknownForcedField so a typo
// in an operator rule surfaces in the trace instead of vanishing.
func (f *ForcedMeta) ApplyField(key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "tmdbid":
		f.TMDBID = value
	case "type":
		if strings.EqualFold(value, string(MediaTypeMovie)) {
			f.Type = MediaTypeMovie
		} else {
			f.Type = MediaTypeTV
		}
		f.HasType = true
	case "s":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("forced season %q: %w", value, coreerrors.ErrBadFormula)
		}
		f.Season = n
		f.HasSeason = true
	case "e":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("forced episode %q: %w", value, coreerrors.ErrBadFormula)
		}
		f.Episode = n
		f.HasEpisode = true
	default:
		return fmt.Errorf("%w: %q", coreerrors.ErrUnknownForcedField, key)
	}
	return nil
}

// applyTo copies the forced fields onto a fresh record.
func (f *ForcedMeta) applyTo(r *Record) {
	r.ForcedTMDBID = f.TMDBID
	if f.HasType {
		r.Type = f.Type
	}
	if f.HasSeason {
		r.Season = f.Season
		r.HasSeason = true
	}
	if f.HasEpisode {
		r.Episode = f.Episode
		r.HasEpisode = true
	}
}

// formatEpisode renders an episode number without a trailing .0.
func formatEpisode(e float64) string {
	if e == float64(int64(e)) {
		return strconv.FormatInt(int64(e), 10)
	}
	return strconv.FormatFloat(e, 'f', -1, 64)
}
