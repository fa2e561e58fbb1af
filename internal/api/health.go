package api

import (
	"net/http"
	"time"

	"stormlightlabs.org/propline/internal/ensemble"
	"stormlightlabs.org/propline/internal/explain"
	"stormlightlabs.org/propline/internal/ingest"
	"stormlightlabs.org/propline/internal/supervisor"
)

type ingestionHealth struct {
	LastCycleAt        time.Time `json:"last_cycle_at"`
	LastCycleOk        bool      `json:"last_cycle_ok"`
	ProjectionsTotal   int64     `json:"projections_total"`
	ProjectionsLast24h int64     `json:"projections_last_24h"`
	OldestFetchedAt    time.Time `json:"oldest_fetched_at"`
}

type modelsHealth struct {
	ReadyCount       int     `json:"ready_count"`
	TotalCount       int     `json:"total_count"`
	EnsembleAccuracy float64 `json:"ensemble_accuracy"`
}

type llmHealth struct {
	AvailableModels []string `json:"available_models"`
	Primary         *string  `json:"primary"`
}

type healthResponse struct {
	Status         string           `json:"status"`
	Port           int              `json:"port"`
	UptimeSeconds  float64          `json:"uptime_seconds"`
	Ingestion      ingestionHealth  `json:"ingestion"`
	Models         modelsHealth     `json:"models"`
	LLM            llmHealth        `json:"llm"`
}

// HealthRoutes serves GET /health: cheap, side-effect-free, never 5xx unless
// the process is genuinely dying, per §6.
type HealthRoutes struct {
	engine       *ingest.Engine
	manager      *ensemble.Manager
	explainSvc   *explain.Service
	supervisor   *supervisor.Supervisor
}

// NewHealthRoutes builds the health registrar.
func NewHealthRoutes(engine *ingest.Engine, manager *ensemble.Manager, explainSvc *explain.Service, sup *supervisor.Supervisor) *HealthRoutes {
	return &HealthRoutes{engine: engine, manager: manager, explainSvc: explainSvc, supervisor: sup}
}

func (h *HealthRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
}

func (h *HealthRoutes) health(w http.ResponseWriter, r *http.Request) {
	ingestionSummary, err := h.engine.Health(r.Context())
	status := "ok"
	if err != nil || ingestionSummary.Degraded {
		status = "degraded"
	}

	ready, total := h.manager.ReadyCount()
	models, primary := h.explainSvc.AvailableModels()

	var primaryPtr *string
	if primary != "" {
		primaryPtr = &primary
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		Port:          h.supervisor.Port(),
		UptimeSeconds: h.supervisor.Uptime().Seconds(),
		Ingestion: ingestionHealth{
			LastCycleAt:        ingestionSummary.LastCycleAt,
			LastCycleOk:        ingestionSummary.LastCycleOk,
			ProjectionsTotal:   ingestionSummary.ProjectionsTotal,
			ProjectionsLast24h: ingestionSummary.ProjectionsLast24h,
			OldestFetchedAt:    ingestionSummary.OldestFetchedAt,
		},
		Models: modelsHealth{
			ReadyCount:       ready,
			TotalCount:       total,
			EnsembleAccuracy: h.manager.EnsembleAccuracy(),
		},
		LLM: llmHealth{
			AvailableModels: models,
			Primary:         primaryPtr,
		},
	})
}
