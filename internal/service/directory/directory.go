// Package directory normalizes the loosely-typed persona records served by
// the backend into canonical Personas. All field-name probing happens here;
// downstream components only ever see the canonical shape.
package directory

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"github.com/leafpost/leafpost/internal/metrics"
	"github.com/leafpost/leafpost/internal/model/persona"
)

// Fetcher retrieves raw persona records from the backend.
type Fetcher interface {
	Personas(ctx context.Context, sortBy string, limit int) (json.RawMessage, error)
}

// Options filter the listing.
type Options struct {
	Sort  string // "popular" or empty
	Limit int    // clamped to maxLimit; 0 means unlimited
}

// Result distinguishes "no personas yet" (empty list, Complete true) from
// "directory unreachable or malformed" (Complete false). Callers render
// different UI for the two.
type Result struct {
	Personas []persona.Persona `json:"personas"`
	Complete bool              `json:"complete"`
}

const maxLimit = 100

// Service fetches, normalizes and caches personas.
type Service struct {
	fetcher Fetcher
	store   *persona.MemoryStore
	logger  zerolog.Logger
}

// NewService wires the directory to its fetcher and the shared persona store.
func NewService(fetcher Fetcher, store *persona.MemoryStore, logger zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		store:   store,
		logger:  logger.With().Str("component", "directory").Logger(),
	}
}

// List fetches and normalizes the persona listing. Remote failures and
// uninterpretable response shapes are absorbed into Complete=false rather
// than surfaced as errors; the compose surface stays up either way.
func (s *Service) List(ctx context.Context, opts Options) Result {
	limit := opts.Limit
	if limit > maxLimit {
		limit = maxLimit
	}

	raw, err := s.fetcher.Personas(ctx, opts.Sort, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("persona listing failed")
		return Result{Personas: []persona.Persona{}, Complete: false}
	}

	records, ok := extractRecords(raw)
	if !ok {
		s.logger.Warn().Msg("persona response shape not interpretable as a list")
		return Result{Personas: []persona.Persona{}, Complete: false}
	}

	personas := s.normalizeAll(records)
	rankByUsage(personas, usageCounts(records))

	s.store.Replace(personas)
	return Result{Personas: personas, Complete: true}
}

// extractRecords tolerates the envelope shapes the backend has used over
// time: a bare array, {data:[...]}, {data:{data:[...]}}, {items:[...]},
// {results:[...]}.
func extractRecords(raw json.RawMessage) ([]map[string]any, bool) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, false
	}

	switch v := top.(type) {
	case []any:
		return toRecordSlice(v)
	case map[string]any:
		for _, key := range []string{"data", "items", "results"} {
			nested, exists := v[key]
			if !exists {
				continue
			}
			if arr, isArr := nested.([]any); isArr {
				return toRecordSlice(arr)
			}
			if inner, isMap := nested.(map[string]any); isMap {
				if arr, isArr := inner["data"].([]any); isArr {
					return toRecordSlice(arr)
				}
			}
		}
	}
	return nil, false
}

func toRecordSlice(items []any) ([]map[string]any, bool) {
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, true
}

func (s *Service) normalizeAll(records []map[string]any) []persona.Persona {
	personas := make([]persona.Persona, 0, len(records))
	for _, record := range records {
		p, ok := s.normalize(record)
		if !ok {
			continue
		}
		personas = append(personas, p)
	}
	return personas
}

// normalize maps one raw record to a canonical Persona. Records without a
// resolvable voice identifier are dropped entirely; they must never reach
// persona selection.
func (s *Service) normalize(record map[string]any) (persona.Persona, bool) {
	id, ok := intField(record, "id")
	if !ok {
		s.logger.Warn().Msg("persona record missing numeric id, dropped")
		return persona.Persona{}, false
	}

	name, _ := firstString(record, "displayName", "name")
	avatar, _ := firstString(record, "avatarUrl", "imageUrl")
	if name == "" || avatar == "" {
		s.logger.Warn().Int("personaId", id).Msg("persona record missing name or avatar, dropped")
		return persona.Persona{}, false
	}

	voiceID, source := resolveVoiceID(record)
	if voiceID == "" {
		// Data-quality defect: sending on this persona's behalf is impossible.
		s.logger.Warn().Int("personaId", id).Msg("persona record has no resolvable voice identifier, dropped")
		metrics.PersonasDropped.Inc()
		return persona.Persona{}, false
	}
	s.logger.Debug().Int("personaId", id).Str("source", source).Msg("voice identifier resolved")

	sample, _ := firstString(record, "sampleUtterance", "previewText")

	return persona.Persona{
		ID:              id,
		DisplayName:     name,
		AvatarURL:       avatar,
		VoiceID:         voiceID,
		SampleUtterance: sample,
	}, true
}

// usageCounts extracts the optional per-record usage counter, keyed by
// persona id. The counter may be absent when the backend's popularity store
// is down; those records simply go unranked.
func usageCounts(records []map[string]any) map[int]int {
	counts := make(map[int]int)
	for _, record := range records {
		id, ok := intField(record, "id")
		if !ok {
			continue
		}
		for _, key := range []string{"usageCount", "usage_count", "count"} {
			if n, found := intField(record, key); found {
				counts[id] = n
				break
			}
		}
	}
	return counts
}

// rankByUsage assigns 1-based popularity ranks to personas that carry a usage
// count, most-used first. Personas without a count stay unranked.
func rankByUsage(personas []persona.Persona, counts map[int]int) {
	ranked := make([]int, 0, len(personas))
	for i := range personas {
		if _, ok := counts[personas[i].ID]; ok {
			ranked = append(ranked, i)
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return counts[personas[ranked[a]].ID] > counts[personas[ranked[b]].ID]
	})
	for rank, idx := range ranked {
		personas[idx].PopularityRank = rank + 1
	}
}
