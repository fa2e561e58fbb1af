package api

import (
	"net/http"
	"time"

	"stormlightlabs.org/propline/internal/core"
	"stormlightlabs.org/propline/internal/ingest"
	"stormlightlabs.org/propline/internal/repository"
)

// projectionsResponse is the GET /api/prizepicks/projections body.
type projectionsResponse struct {
	Success          bool              `json:"success"`
	Count            int               `json:"count"`
	Projections      []core.Projection `json:"projections"`
	Status           string            `json:"status"`
	OldestFetchedAt  time.Time         `json:"oldest_fetched_at"`
	ConversionErrors int64             `json:"conversion_errors"`
}

const (
	defaultGrace = 15 * time.Minute
	defaultProjectionsLimit = 500
	maxProjectionsLimit     = 2000
)

// ProjectionRoutes serves the store-only read path: GET /api/prizepicks/projections.
// It never blocks on upstream, per §4.8.
type ProjectionRoutes struct {
	repo           *repository.ProjectionRepository
	engine         *ingest.Engine
	staleThreshold time.Duration
}

// NewProjectionRoutes builds the projections registrar. engine may be nil,
// in which case conversion_errors is always reported as 0.
func NewProjectionRoutes(repo *repository.ProjectionRepository, engine *ingest.Engine, staleThreshold time.Duration) *ProjectionRoutes {
	return &ProjectionRoutes{repo: repo, engine: engine, staleThreshold: staleThreshold}
}

func (p *ProjectionRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/prizepicks/projections", p.list)
}

func (p *ProjectionRoutes) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// q.Has distinguishes "limit unset" (-> default page) from an explicit
	// "limit=0" (-> empty page), which GetBettable's filter.Limit zero value
	// cannot express on its own.
	limitExplicitlyZero := false
	limit := defaultProjectionsLimit
	if q.Has("limit") {
		limit = getIntQuery(r, "limit", defaultProjectionsLimit)
		if limit <= 0 {
			limitExplicitlyZero = true
		}
	}
	if limit > maxProjectionsLimit {
		limit = maxProjectionsLimit
	}

	filter := core.ProjectionFilter{
		LeagueID:   q.Get("league_id"),
		StatType:   q.Get("stat_type"),
		PlayerName: q.Get("player"),
		Limit:      limit,
		IncludeRaw: q.Get("include_raw") == "true",
	}

	var conversionErrors int64
	if p.engine != nil {
		conversionErrors = p.engine.ConversionErrors()
	}

	if limitExplicitlyZero {
		writeJSON(w, http.StatusOK, projectionsResponse{
			Success:          true,
			Count:            0,
			Projections:      []core.Projection{},
			Status:           "empty",
			ConversionErrors: conversionErrors,
		})
		return
	}

	projections, err := p.repo.GetBettable(r.Context(), time.Now().UTC(), defaultGrace, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	if !filter.IncludeRaw {
		for i := range projections {
			projections[i].Raw = nil
		}
	}

	status := "fresh"
	var oldest time.Time
	if len(projections) == 0 {
		status = "empty"
	} else {
		oldest = projections[0].FetchedAt
		for _, proj := range projections {
			if proj.FetchedAt.Before(oldest) {
				oldest = proj.FetchedAt
			}
		}
		if time.Since(oldest) > p.staleThreshold {
			status = "stale"
		}
	}

	writeJSON(w, http.StatusOK, projectionsResponse{
		Success:          true,
		Count:            len(projections),
		Projections:      projections,
		Status:           status,
		OldestFetchedAt:  oldest,
		ConversionErrors: conversionErrors,
	})
}
