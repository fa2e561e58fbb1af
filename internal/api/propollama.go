package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"stormlightlabs.org/propline/internal/core"
	"stormlightlabs.org/propline/internal/ensemble"
	"stormlightlabs.org/propline/internal/explain"
	"stormlightlabs.org/propline/internal/repository"
)

const defaultExplainDeadline = 30 * time.Second

type propOllamaRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Context   struct {
		ProjectionIDs []string `json:"projection_ids"`
	} `json:"context"`
}

type propOllamaResponse struct {
	SessionID string          `json:"session_id"`
	Reply     core.Explanation `json:"reply"`
	ModelUsed string          `json:"model_used"`
	LatencyMs int64           `json:"latency_ms"`
}

// PropOllamaRoutes serves the chat/explanation endpoint.
type PropOllamaRoutes struct {
	projections *repository.ProjectionRepository
	manager     *ensemble.Manager
	service     *explain.Service
}

// NewPropOllamaRoutes builds the propollama registrar.
func NewPropOllamaRoutes(projections *repository.ProjectionRepository, manager *ensemble.Manager, service *explain.Service) *PropOllamaRoutes {
	return &PropOllamaRoutes{projections: projections, manager: manager, service: service}
}

func (p *PropOllamaRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/propollama/chat", p.chat)
}

func (p *PropOllamaRoutes) chat(w http.ResponseWriter, r *http.Request) {
	var req propOllamaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), defaultExplainDeadline)
	defer cancel()

	projection, result := p.resolveSubject(ctx, req.Context.ProjectionIDs)

	explanation := p.service.Explain(ctx, req.SessionID, projection, result, req.Message)

	writeJSON(w, http.StatusOK, propOllamaResponse{
		SessionID: req.SessionID,
		Reply:     explanation,
		ModelUsed: explanation.ModelUsed,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// resolveSubject loads the projection (and its prediction) the question is
// about. Absent a projection_ids hint, or on any lookup failure, it falls
// back to an empty projection so the ExplanationService still answers
// generically rather than failing the request.
func (p *PropOllamaRoutes) resolveSubject(ctx context.Context, projectionIDs []string) (core.Projection, core.PredictionResult) {
	if len(projectionIDs) == 0 {
		return core.Projection{}, core.DegradedPrediction(core.Projection{}, "no_projection_specified")
	}

	proj, err := p.projections.GetByID(ctx, projectionIDs[0])
	if err != nil {
		return core.Projection{}, core.DegradedPrediction(core.Projection{}, "projection_not_found")
	}

	results, _, _ := p.manager.Rank(ctx, []core.Projection{*proj}, 1)
	if len(results) == 0 {
		return *proj, core.DegradedPrediction(*proj, "no_scorers_ready")
	}

	return *proj, results[0]
}
