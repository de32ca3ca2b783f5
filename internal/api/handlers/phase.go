package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/labeler"
	"github.com/wonny/lunaris/internal/phase"
	"github.com/wonny/lunaris/pkg/logger"
)

// TimelineService resolves and rebuilds the study timeline (pipeline.Orchestrator)
type TimelineService interface {
	TimelineKey() string
	Labeler(ctx context.Context) (*labeler.Labeler, error)
	RebuildTimeline(ctx context.Context) (*phase.Timeline, error)
}

// PhaseHandler serves boundary and label lookups
// ⭐ SSOT: 위상 API 핸들러는 이 구조체에서만
type PhaseHandler struct {
	service TimelineService
	logger  *logger.Logger

	mu      sync.RWMutex
	current *labeler.Labeler
	group   singleflight.Group
}

// NewPhaseHandler creates a new phase handler
func NewPhaseHandler(service TimelineService, log *logger.Logger) *PhaseHandler {
	return &PhaseHandler{
		service: service,
		logger:  log,
	}
}

// PhasesResponse is the body of GET /api/phases
type PhasesResponse struct {
	TimelineKey string                    `json:"timeline_key"`
	RangeStart  time.Time                 `json:"range_start"`
	RangeEnd    time.Time                 `json:"range_end"`
	PhaseCount  int                       `json:"phase_count"`
	Clamped     int                       `json:"clamped"`
	Boundaries  []contracts.PhaseBoundary `json:"boundaries"`
}

// labeler returns the in-memory labeler, resolving the timeline on first use.
// Concurrent first requests share one build; it runs outside the lock and
// outlives a canceled caller.
func (h *PhaseHandler) labeler(ctx context.Context) (*labeler.Labeler, error) {
	h.mu.RLock()
	lb := h.current
	h.mu.RUnlock()
	if lb != nil {
		return lb, nil
	}

	ch := h.group.DoChan("labeler", func() (interface{}, error) {
		lb, err := h.service.Labeler(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		if h.current == nil { // Rebuild may have won the race
			h.current = lb
		}
		return h.current, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*labeler.Labeler), nil
	}
}

// GetPhases returns the boundaries, optionally restricted to [from, to)
// GET /api/phases?from=2024-01-01T00:00:00Z&to=2024-02-01T00:00:00Z
func (h *PhaseHandler) GetPhases(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(w, r, "to")
	if !ok {
		return
	}

	lb, err := h.labeler(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve timeline")
		respondError(w, http.StatusInternalServerError, "Failed to resolve timeline")
		return
	}

	tl := lb.Timeline()
	boundaries := make([]contracts.PhaseBoundary, 0, tl.Len())
	clamped := 0
	for _, b := range tl.Boundaries() {
		if !from.IsZero() && b.Instant.Before(from) {
			continue
		}
		if !to.IsZero() && !b.Instant.Before(to) {
			continue
		}
		if b.Clamped {
			clamped++
		}
		boundaries = append(boundaries, b)
	}

	respondJSON(w, http.StatusOK, PhasesResponse{
		TimelineKey: h.service.TimelineKey(),
		RangeStart:  tl.RangeStart(),
		RangeEnd:    tl.RangeEnd(),
		PhaseCount:  tl.PhaseCount(),
		Clamped:     clamped,
		Boundaries:  boundaries,
	})
}

// GetLabel returns the phase and period of one timestamp
// GET /api/label?at=2021-12-31T23:59:59Z
func (h *PhaseHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("at") == "" {
		respondError(w, http.StatusBadRequest, "at is required")
		return
	}
	at, ok := parseTimeParam(w, r, "at")
	if !ok {
		return
	}

	lb, err := h.labeler(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve timeline")
		respondError(w, http.StatusInternalServerError, "Failed to resolve timeline")
		return
	}

	respondJSON(w, http.StatusOK, lb.Label(at))
}

// Rebuild rescans the oracle and swaps the served timeline
// POST /api/timeline/rebuild
func (h *PhaseHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tl, err := h.service.RebuildTimeline(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to rebuild timeline")
		respondError(w, http.StatusInternalServerError, "Failed to rebuild timeline")
		return
	}

	h.mu.Lock()
	if h.current != nil {
		periods := h.current.Periods()
		if lb, err := labeler.New(tl, periods); err == nil {
			h.current = lb
		}
	}
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"timeline_key": h.service.TimelineKey(),
		"boundaries":   tl.Len(),
		"clamped":      tl.Snapshot().ClampedCount(),
		"duration":     time.Since(start).Seconds(),
	})
}

// parseTimeParam parses an optional RFC3339 query parameter, writing 400 on failure
func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, name+" must be RFC3339")
		return time.Time{}, false
	}
	return t.UTC(), true
}
