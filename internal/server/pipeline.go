package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/angelospk/animatch/internal/constants"
	"github.com/angelospk/animatch/pkg/core/bangumi"
	"github.com/angelospk/animatch/pkg/core/recognizer"
	"github.com/angelospk/animatch/pkg/core/render"
	"github.com/angelospk/animatch/pkg/core/tmdb"
)

// matchOutcome is what the cloud stage produced: a TMDB match, or a
// bangumi subject that could not be mapped onto TMDB, or nothing.
type matchOutcome struct {
	details   *tmdb.Details
	subject   *bangumi.Subject
	refetcher render.Refetcher
	logs      []string
}

func (m *matchOutcome) logf(format string, args ...any) {
	m.logs = append(m.logs, fmt.Sprintf(format, args...))
}

// resolveCloud matches the record against the catalogs. Search order
// depends on the request: bangumi-priority puts bgm.tv first, failover
// appends it after TMDB, default is TMDB alone.
func (s *Server) resolveCloud(ctx context.Context, req *RecognizeRequest, rec *recognizer.Record) *matchOutcome {
	m := &matchOutcome{}

	apiKey := req.TMDBAPIKey
	if apiKey == "" {
		apiKey = s.cfg.TMDBAPIKey
	}
	tc, err := tmdb.NewClient(apiKey)
	if err != nil {
		m.logf("cloud skipped: %v", err)
		return m
	}
	if proxy := firstNonEmpty(req.TMDBProxy, s.cfg.TMDBProxy); proxy != "" {
		if err := tc.SetProxy(proxy); err != nil {
			m.logf("tmdb proxy rejected: %v", err)
		}
	}
	m.refetcher = tc

	key := rec.PatternKey()
	if req.UseStorage {
		if data, ok := s.store.GetMetadata(ctx, key, "tmdb", constants.MetadataCacheExpiryDays); ok {
			var d tmdb.Details
			if err := json.Unmarshal(data, &d); err == nil && d.ID != 0 {
				m.details = &d
				m.logf("metadata cache hit for %q", key)
				return m
			}
		}
	}

	if rec.ForcedTMDBID != "" {
		if id, err := strconv.Atoi(rec.ForcedTMDBID); err == nil {
			mediaType := firstNonEmpty(req.TMDBType, string(rec.Type))
			d, err := tc.GetDetails(ctx, id, mediaType, "")
			if err == nil {
				m.details = d
				m.logf("pinned tmdb id %d resolved", id)
				s.persist(ctx, req, rec, m)
				return m
			}
			m.logf("pinned tmdb id %d failed: %v", id, err)
		}
	}

	providers := []func(context.Context, *RecognizeRequest, *recognizer.Record, *tmdb.Client, *matchOutcome) bool{s.tryTMDB}
	if req.BangumiPriority {
		providers = []func(context.Context, *RecognizeRequest, *recognizer.Record, *tmdb.Client, *matchOutcome) bool{s.tryBangumi, s.tryTMDB}
	} else if req.BangumiFailover {
		providers = append(providers, s.tryBangumi)
	}

	for _, try := range providers {
		if try(ctx, req, rec, tc, m) {
			s.persist(ctx, req, rec, m)
			return m
		}
	}
	m.logf("no catalog match for %q", rec.Title())
	return m
}

func (s *Server) tryTMDB(ctx context.Context, req *RecognizeRequest, rec *recognizer.Record, tc *tmdb.Client, m *matchOutcome) bool {
	d, logs, err := tc.SmartSearch(ctx, tmdb.SmartSearchParams{
		CNName:        rec.CNName,
		ENName:        rec.ENName,
		Year:          rec.Year,
		MediaType:     string(rec.Type),
		AnimePriority: req.AnimePriority,
	})
	m.logs = append(m.logs, logs...)
	if err != nil {
		m.logf("tmdb search gave up: %v", err)
		return false
	}
	m.details = d
	return true
}

func (s *Server) tryBangumi(ctx context.Context, req *RecognizeRequest, rec *recognizer.Record, tc *tmdb.Client, m *matchOutcome) bool {
	bc := bangumi.NewClient(firstNonEmpty(req.BangumiToken, s.cfg.BangumiToken))
	if proxy := firstNonEmpty(req.BangumiProxy, s.cfg.BangumiProxy); proxy != "" {
		if err := bc.SetProxy(proxy); err != nil {
			m.logf("bangumi proxy rejected: %v", err)
		}
	}

	subject, logs, err := bc.SearchBest(ctx, rec.Title(), string(rec.Type), rec.Episode)
	m.logs = append(m.logs, logs...)
	if err != nil {
		m.logf("bangumi search gave up: %v", err)
		return false
	}

	d, mapLogs, err := bc.MapToTMDB(ctx, tc, subject, rec.Year)
	m.logs = append(m.logs, mapLogs...)
	if err != nil {
		// A verified subject is still a match even without a TMDB
		// mapping; naming comes from bgm.tv in that case.
		m.subject = subject
		m.logf("keeping bangumi subject %d without tmdb mapping", subject.ID)
		return true
	}
	m.details = d
	return true
}

func (s *Server) persist(ctx context.Context, req *RecognizeRequest, rec *recognizer.Record, m *matchOutcome) {
	if !req.UseStorage {
		return
	}
	m.logs = append(m.logs, s.storeMatch(ctx, rec, m)...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
