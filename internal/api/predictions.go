package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stormlightlabs.org/propline/internal/core"
	"stormlightlabs.org/propline/internal/ensemble"
	"stormlightlabs.org/propline/internal/repository"
)

const defaultPredictDeadline = 10 * time.Second

// predictionsResponse is the GET /api/predictions/prizepicks/enhanced body.
type predictionsResponse struct {
	Success         bool                   `json:"success"`
	Count           int                    `json:"count"`
	Predictions     []core.PredictionResult `json:"predictions"`
	Degraded        bool                   `json:"degraded"`
	DegradedReason  string                 `json:"degraded_reason,omitempty"`
}

// PredictionRoutes serves ranked, scored projections via ModelManager.
type PredictionRoutes struct {
	repo            *repository.ProjectionRepository
	manager         *ensemble.Manager
	minReadyScorers int
}

// NewPredictionRoutes builds the predictions registrar. minReadyScorers is
// the minimum ready-scorer count required for a non-degraded response; 0
// means "all registered scorers must be ready."
func NewPredictionRoutes(repo *repository.ProjectionRepository, manager *ensemble.Manager, minReadyScorers int) *PredictionRoutes {
	return &PredictionRoutes{repo: repo, manager: manager, minReadyScorers: minReadyScorers}
}

func (p *PredictionRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/predictions/prizepicks/enhanced", p.rank)
}

func (p *PredictionRoutes) rank(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ProjectionFilter{
		LeagueID:   q.Get("league_id"),
		StatType:   q.Get("stat_type"),
		PlayerName: q.Get("player"),
		Limit:      getIntQuery(r, "limit", defaultProjectionsLimit),
	}
	k := getIntQuery(r, "k", 50)
	minConfidence := getFloatQuery(r, "min_confidence", 0)

	ctx, cancel := context.WithTimeout(r.Context(), defaultPredictDeadline)
	defer cancel()

	projections, err := p.repo.GetBettable(ctx, time.Now().UTC(), defaultGrace, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	results, degraded, reason := p.manager.Rank(ctx, projections, k)

	if !degraded {
		ready, total := p.manager.ReadyCount()
		threshold := p.minReadyScorers
		if threshold <= 0 {
			threshold = total
		}
		if ready < threshold {
			degraded = true
			reason = fmt.Sprintf("only %d of %d scorers ready", ready, total)
		}
	}

	if ctx.Err() != nil {
		degraded = true
		reason = "deadline_exceeded"
	}

	if minConfidence > 0 {
		filtered := results[:0]
		for _, res := range results {
			if res.Confidence >= minConfidence {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}

	writeJSON(w, http.StatusOK, predictionsResponse{
		Success:        true,
		Count:          len(results),
		Predictions:    results,
		Degraded:       degraded,
		DegradedReason: reason,
	})
}
