package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelospk/animatch/internal/constants"
	"github.com/angelospk/animatch/pkg/core/batch"
	"github.com/angelospk/animatch/pkg/core/paths"
	"github.com/angelospk/animatch/pkg/core/recognizer"
	"github.com/angelospk/animatch/pkg/core/render"
	"github.com/angelospk/animatch/pkg/core/storage"
)

// RecognizeRequest is the /api/recognize payload. Everything except
// the filename is optional; request fields override server defaults.
type RecognizeRequest struct {
	Filename         string   `json:"filename"`
	Description      string   `json:"description,omitempty"`
	CustomWords      []string `json:"custom_words,omitempty"`
	CustomGroups     []string `json:"custom_groups,omitempty"`
	CustomRender     []string `json:"custom_render,omitempty"`
	ForceFilename    bool     `json:"force_filename,omitempty"`
	BatchEnhancement bool     `json:"batch_enhancement,omitempty"`
	WithCloud        bool     `json:"with_cloud,omitempty"`
	UseStorage       bool     `json:"use_storage,omitempty"`
	AnimePriority    bool     `json:"anime_priority,omitempty"`
	BangumiPriority  bool     `json:"bangumi_priority,omitempty"`
	BangumiFailover  bool     `json:"bangumi_failover,omitempty"`
	TMDBAPIKey       string   `json:"tmdb_api_key,omitempty"`
	TMDBProxy        string   `json:"tmdb_proxy,omitempty"`
	TMDBID           string   `json:"tmdb_id,omitempty"`
	TMDBType         string   `json:"tmdb_type,omitempty"`
	BangumiToken     string   `json:"bangumi_token,omitempty"`
	BangumiProxy     string   `json:"bangumi_proxy,omitempty"`
}

// RecognizeResult is the /api/recognize response.
type RecognizeResult struct {
	TaskID     string             `json:"task_id"`
	Success    bool               `json:"success"`
	Category   string             `json:"category"`
	Title      string             `json:"title"`
	Year       string             `json:"year,omitempty"`
	TMDBID     string             `json:"tmdb_id,omitempty"`
	Score      float64            `json:"score,omitempty"`
	Poster     string             `json:"poster,omitempty"`
	Record     *recognizer.Record `json:"record"`
	Summary    string             `json:"summary"`
	DurationMS int64              `json:"duration_ms"`
	Logs       []string           `json:"logs,omitempty"`
}

const (
	categoryMovie  = "电影"
	categorySeries = "剧集"
)

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	result := s.Recognize(r.Context(), &req)
	writeJSON(w, http.StatusOK, result)
}

// Recognize runs the whole pipeline for one name: path flattening,
// kernel recognition, memory lookup, cloud matching, and render rules.
func (s *Server) Recognize(ctx context.Context, req *RecognizeRequest) *RecognizeResult {
	start := time.Now()
	taskID := uuid.NewString()
	logger := s.log.WithField("task_id", taskID)

	var logs []string
	logs = append(logs, s.auditConfig(req)...)

	// Fold directory context into the name. Forced filenames skip
	// sibling-folder heuristics and trust the name as given.
	hint := paths.Flatten(req.Filename, req.ForceFilename)
	logs = append(logs, hint.Logs...)

	opts := recognizer.Options{
		CustomWords:      append(append([]string{}, s.cfg.CustomWords...), req.CustomWords...),
		CustomGroups:     append(append([]string{}, s.cfg.CustomGroups...), req.CustomGroups...),
		SpecialRules:     s.specialRules,
		BatchEnhancement: req.BatchEnhancement,
		ForceFilename:    req.ForceFilename,
	}
	rec, tr := recognizer.Recognize(hint.Name, opts)
	logs = append(logs, tr.Lines()...)

	// A Season directory outranks the season the kernel assumed, but
	// never one it actually read out of the filename.
	if hint.HasSeason && (!rec.HasSeason || rec.SeasonDefaulted) {
		rec.Season = hint.Season
		rec.HasSeason = true
		rec.SeasonDefaulted = false
		logs = append(logs, fmt.Sprintf("season %d adopted from path", hint.Season))
	}
	if rec.ForcedTMDBID == "" {
		if req.TMDBID != "" {
			rec.ForcedTMDBID = req.TMDBID
		} else if hint.TMDBID != "" {
			rec.ForcedTMDBID = hint.TMDBID
		}
	}

	// A release-page description can carry season and collection facts
	// the filename itself lacks.
	if req.BatchEnhancement && req.Description != "" {
		enh, elogs := batch.EnhanceFromDescription(req.Description, rec.Season, rec.IsBatch)
		logs = append(logs, elogs...)
		if enh.Season > 0 {
			rec.Season = enh.Season
			rec.HasSeason = true
			rec.SeasonDefaulted = false
		}
		if enh.Range != nil && !rec.HasEpisode {
			rec.Episode = enh.Range.Start
			rec.EndEpisode = enh.Range.End
			rec.HasEpisode = true
		}
		if enh.IsBatch {
			rec.IsBatch = true
		}
		if rec.HasEpisode && rec.Type == recognizer.MediaTypeMovie {
			rec.Type = recognizer.MediaTypeTV
		}
	}

	// A remembered pattern pins the id before any cloud call.
	if req.UseStorage && rec.ForcedTMDBID == "" {
		if mem, ok := s.store.GetMemory(ctx, rec.PatternKey(), constants.MemoryExpiryDays); ok {
			rec.ForcedTMDBID = strconv.Itoa(mem.TMDBID)
			if req.TMDBType == "" {
				req.TMDBType = mem.MediaType
			}
			logs = append(logs, fmt.Sprintf("memory hit: %s -> tmdb %d", rec.PatternKey(), mem.TMDBID))
		}
	}

	var match *matchOutcome
	if req.WithCloud {
		match = s.resolveCloud(ctx, req, rec)
		logs = append(logs, match.logs...)
	} else {
		match = &matchOutcome{}
	}

	result := s.assemble(ctx, req, rec, match, taskID)
	result.Logs = append(logs, result.Logs...)
	result.DurationMS = time.Since(start).Milliseconds()

	logger.WithFields(map[string]any{
		"summary":     result.Summary,
		"duration_ms": result.DurationMS,
	}).Info("recognition finished")
	return result
}

// auditConfig records which credentials are in play, without values.
func (s *Server) auditConfig(req *RecognizeRequest) []string {
	var logs []string
	if req.TMDBAPIKey != "" || s.cfg.TMDBAPIKey != "" {
		logs = append(logs, "tmdb credentials present")
	}
	if req.BangumiToken != "" || s.cfg.BangumiToken != "" {
		logs = append(logs, "bangumi token present")
	}
	if req.UseStorage && s.store == nil {
		logs = append(logs, "storage requested but not configured")
	}
	return logs
}

// assemble folds the kernel record and any cloud match into the final
// result, then lets render rules have the last word.
func (s *Server) assemble(ctx context.Context, req *RecognizeRequest, rec *recognizer.Record, match *matchOutcome, taskID string) *RecognizeResult {
	title := rec.Title()
	year := rec.Year
	var tmdbID string
	var score float64
	var poster string

	if match.details != nil {
		d := match.details
		tmdbID = strconv.Itoa(d.ID)
		score = d.Score
		poster = d.PosterPath
		if d.DisplayTitle() != "" {
			title = d.DisplayTitle()
		}
		if d.Year() != "" {
			year = d.Year()
		}
		if d.MediaType == "movie" {
			rec.Type = recognizer.MediaTypeMovie
		} else {
			rec.Type = recognizer.MediaTypeTV
		}
	} else if match.subject != nil {
		sub := match.subject
		if sub.Title() != "" {
			title = sub.Title()
		}
		if sub.Year() != "" {
			year = sub.Year()
		}
		poster = sub.Image()
		if sub.IsMovieLike() {
			rec.Type = recognizer.MediaTypeMovie
		} else {
			rec.Type = recognizer.MediaTypeTV
		}
	} else if rec.ForcedTMDBID != "" {
		tmdbID = rec.ForcedTMDBID
	}

	out := render.Outcome{
		Filename:      req.Filename,
		TMDBID:        tmdbID,
		Type:          string(rec.Type),
		Title:         title,
		CNName:        rec.CNName,
		ENName:        rec.ENName,
		Year:          year,
		Season:        rec.Season,
		Episode:       rec.Episode,
		ProcessedName: rec.ProcessedName,
	}
	rules := append(append([]string{}, s.cfg.RenderRules...), req.CustomRender...)
	renderLogs := render.Apply(ctx, rules, &out, match.refetcher)

	rec.CNName = out.CNName
	rec.ENName = out.ENName
	rec.Year = out.Year
	rec.Season = out.Season
	rec.Episode = out.Episode
	rec.ProcessedName = out.ProcessedName
	if out.Type == string(recognizer.MediaTypeMovie) {
		rec.Type = recognizer.MediaTypeMovie
	} else if out.Type == string(recognizer.MediaTypeTV) {
		rec.Type = recognizer.MediaTypeTV
	}

	category := categorySeries
	if rec.Type == recognizer.MediaTypeMovie {
		category = categoryMovie
	}

	return &RecognizeResult{
		TaskID:   taskID,
		Success:  true,
		Category: category,
		Title:    out.Title,
		Year:     out.Year,
		TMDBID:   out.TMDBID,
		Score:    score,
		Poster:   poster,
		Record:   rec,
		Summary:  summarize(rec, category),
		Logs:     renderLogs,
	}
}

// summarize builds the one-line digest: "[team] category S01 E07".
func summarize(rec *recognizer.Record, category string) string {
	team := rec.ReleaseGroup
	if team == "" {
		team = "未知"
	}
	s := fmt.Sprintf("[%s] %s", team, category)
	if rec.Type == recognizer.MediaTypeTV {
		s += fmt.Sprintf(" S%02d", rec.Season)
		if rec.HasEpisode {
			s += " " + episodeLabel(rec)
		}
	}
	return s
}

func episodeLabel(rec *recognizer.Record) string {
	if rec.IsBatch && rec.EndEpisode > rec.Episode {
		return fmt.Sprintf("E%s-E%s", formatEp(rec.Episode), formatEp(rec.EndEpisode))
	}
	return "E" + formatEp(rec.Episode)
}

func formatEp(e float64) string {
	if e == float64(int64(e)) {
		return fmt.Sprintf("%02d", int64(e))
	}
	return strconv.FormatFloat(e, 'f', -1, 64)
}

// storeMatch caches the confirmed details and remembers the pattern.
func (s *Server) storeMatch(ctx context.Context, rec *recognizer.Record, m *matchOutcome) []string {
	if m.details == nil {
		return nil
	}
	var logs []string
	key := rec.PatternKey()
	if err := s.store.PutMetadata(ctx, key, "tmdb", m.details); err != nil {
		logs = append(logs, fmt.Sprintf("metadata cache write failed: %v", err))
	}
	err := s.store.PutMemory(ctx, key, storage.Memory{
		TMDBID:    m.details.ID,
		MediaType: m.details.MediaType,
		Season:    rec.Season,
	})
	if err != nil {
		logs = append(logs, fmt.Sprintf("memory write failed: %v", err))
	}
	return logs
}
