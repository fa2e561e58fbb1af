package api

import (
	"net/http"
	"time"

	"stormlightlabs.org/propline/internal/core"
	"stormlightlabs.org/propline/internal/ensemble"
	"stormlightlabs.org/propline/internal/ingest"
)

type trainingStatusResponse struct {
	Scorers    []core.ScorerStatus `json:"scorers"`
	ReadyCount int                 `json:"ready_count"`
	TotalCount int                 `json:"total_count"`
}

type ingestionStatusResponse struct {
	Running             bool                      `json:"running"`
	LastCycleAt         time.Time                 `json:"last_cycle_at"`
	LastCycleDurationMs int64                     `json:"last_cycle_duration_ms"`
	Leagues             []ingest.LeagueCycleState `json:"leagues"`
	RateGovernor        ingest.RateGovernorState  `json:"rate_governor"`
}

// StatusRoutes serves /status/training and /status/ingestion.
type StatusRoutes struct {
	manager *ensemble.Manager
	engine  *ingest.Engine
}

// NewStatusRoutes builds the status registrar.
func NewStatusRoutes(manager *ensemble.Manager, engine *ingest.Engine) *StatusRoutes {
	return &StatusRoutes{manager: manager, engine: engine}
}

func (s *StatusRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status/training", s.training)
	mux.HandleFunc("GET /status/ingestion", s.ingestion)
}

func (s *StatusRoutes) training(w http.ResponseWriter, r *http.Request) {
	ready, total := s.manager.ReadyCount()
	writeJSON(w, http.StatusOK, trainingStatusResponse{
		Scorers:    s.manager.Status(),
		ReadyCount: ready,
		TotalCount: total,
	})
}

func (s *StatusRoutes) ingestion(w http.ResponseWriter, r *http.Request) {
	state := s.engine.State()
	writeJSON(w, http.StatusOK, ingestionStatusResponse{
		Running:             state.Running,
		LastCycleAt:         state.LastCycleAt,
		LastCycleDurationMs: state.LastCycleDurationMs,
		Leagues:             state.Leagues,
		RateGovernor:        state.RateGovernor,
	})
}
