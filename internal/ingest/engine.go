package ingest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"stormlightlabs.org/propline/internal/core"
	"stormlightlabs.org/propline/internal/repository"
)

const (
	defaultBaseURL = "https://api.prizepicks.com"
	maxAttempts    = 3
)

// LeagueCycleState is one league's outcome from the most recent cycle that
// touched it, surfaced on /status/ingestion.
type LeagueCycleState struct {
	LeagueID    string    `json:"league_id"`
	LeagueName  string    `json:"league_name"`
	LastOkAt    time.Time `json:"last_ok_at"`
	LastStatus  string    `json:"last_status"`
	Projections int       `json:"projections"`
}

// EngineState is the full /status/ingestion snapshot.
type EngineState struct {
	Running             bool               `json:"running"`
	LastCycleAt          time.Time          `json:"last_cycle_at"`
	LastCycleDurationMs  int64              `json:"last_cycle_duration_ms"`
	Leagues              []LeagueCycleState `json:"leagues"`
	RateGovernor         RateGovernorState  `json:"rate_governor"`
}

// HealthSummary is the ingestion-specific slice of the /health response.
type HealthSummary struct {
	LastCycleAt        time.Time `json:"last_cycle_at"`
	LastCycleOk        bool      `json:"last_cycle_ok"`
	ProjectionsTotal    int64     `json:"projections_total"`
	ProjectionsLast24h  int64     `json:"projections_last_24h"`
	OldestFetchedAt     time.Time `json:"oldest_fetched_at"`
	Degraded            bool      `json:"degraded"`
}

// Engine ties HTTPFetcher, ResponseCache, RateGovernor, and the repository
// layer together into the perpetual ingestion loop described in §4.4.
type Engine struct {
	fetcher    *HTTPFetcher
	cache      *ResponseCache
	governor   *RateGovernor
	projection *repository.ProjectionRepository
	league     *repository.LeagueRepository
	logger     *log.Logger

	baseURL  string
	host     string
	interval time.Duration

	mu                    sync.Mutex
	running               bool
	lastCycleAt           time.Time
	lastCycleDurationMs   int64
	lastCycleAllFailed    bool
	consecutiveCycleFails int
	leagueStates          map[string]LeagueCycleState

	conversionErrors atomic.Int64
}

// NewEngine builds an Engine with the default PrizePicks base URL.
func NewEngine(fetcher *HTTPFetcher, cache *ResponseCache, governor *RateGovernor, projection *repository.ProjectionRepository, league *repository.LeagueRepository, interval time.Duration, logger *log.Logger) *Engine {
	host := defaultBaseURL
	if u, err := url.Parse(defaultBaseURL); err == nil {
		host = u.Host
	}
	return &Engine{
		fetcher:      fetcher,
		cache:        cache,
		governor:     governor,
		projection:   projection,
		league:       league,
		logger:       logger,
		baseURL:      defaultBaseURL,
		host:         host,
		interval:     interval,
		leagueStates: make(map[string]LeagueCycleState),
	}
}

// Run launches the perpetual ingestion loop. It returns when ctx is
// cancelled; a cycle in flight finishes its current league and then exits,
// per the cancellation contract in §5.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for {
		if err := e.RunCycle(ctx); err != nil {
			e.logger.Warn("ingestion cycle failed", "err", err)
		}
		e.cache.Sweep()

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.interval):
		}
	}
}

// RunCycle executes one ingestion pass across all active leagues. It never
// returns an error for a per-league failure; only a store error severe
// enough to prevent loading the league list is surfaced.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()

	if err := e.league.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("ensure default leagues: %w", err)
	}

	e.refreshLeagueDirectory(ctx)

	leagues, err := e.league.List(ctx, true)
	if err != nil {
		return fmt.Errorf("list active leagues: %w", err)
	}
	sort.Slice(leagues, func(i, j int) bool { return leagues[i].LeagueID < leagues[j].LeagueID })

	anyOk := false
	for _, league := range leagues {
		if ctx.Err() != nil {
			break
		}
		ok := e.ingestLeague(ctx, league)
		anyOk = anyOk || ok
	}

	e.mu.Lock()
	e.lastCycleAt = start
	e.lastCycleDurationMs = time.Since(start).Milliseconds()
	e.lastCycleAllFailed = !anyOk && len(leagues) > 0
	if e.lastCycleAllFailed {
		e.consecutiveCycleFails++
	} else {
		e.consecutiveCycleFails = 0
	}
	e.mu.Unlock()

	return nil
}

// refreshLeagueDirectory opportunistically refreshes the league lookup table
// from the upstream /leagues endpoint. Failure here is non-fatal: the store
// keeps serving from its existing directory.
func (e *Engine) refreshLeagueDirectory(ctx context.Context) {
	leaguesURL := e.baseURL + "/leagues"

	if err := e.governor.Wait(ctx, e.host); err != nil {
		return
	}

	outcome := e.fetcher.Get(ctx, leaguesURL, nil)
	if outcome.Kind != FetchOk {
		e.governor.OnFailure(e.host)
		return
	}
	e.governor.OnSuccess(e.host)

	leagues, err := ParseLeaguesEnvelope(outcome.Body)
	if err != nil {
		e.logger.Warn("parse leagues envelope", "err", err)
		return
	}

	for _, league := range leagues {
		if err := e.league.Upsert(ctx, league); err != nil {
			e.logger.Warn("upsert league", "league_id", league.LeagueID, "err", err)
		}
	}
}

// ingestLeague fetches and stores one league's projections, honoring the
// cache, the rate governor, and the up-to-3-attempt retry ladder. Returns
// true if the league's data was ingested (from cache or network) this call.
func (e *Engine) ingestLeague(ctx context.Context, league core.League) bool {
	reqURL := e.projectionsURL(league.LeagueID)

	if body, hit := e.cache.Get(reqURL); hit {
		e.storeProjections(ctx, league, body)
		e.recordLeagueState(league, true, "cached")
		return true
	}

	var outcome FetchOutcome
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := e.governor.Wait(ctx, e.host); err != nil {
			e.recordLeagueState(league, false, "cancelled")
			return false
		}

		outcome = e.fetcher.Get(ctx, reqURL, nil)

		if outcome.Kind == FetchOk {
			e.governor.OnSuccess(e.host)
			break
		}

		if outcome.Kind == FetchBlocked || outcome.Kind == FetchParse {
			e.logger.Warn("bad_projection_fetch", "league_id", league.LeagueID, "kind", outcome.Kind, "err", outcome.Err)
			e.recordLeagueState(league, false, string(outcome.Kind))
			return false
		}

		if _, shouldRetry := e.governor.OnFailure(e.host); !shouldRetry {
			e.logger.Warn("league_cycle_abandoned", "league_id", league.LeagueID, "kind", outcome.Kind)
			e.recordLeagueState(league, false, string(outcome.Kind))
			return false
		}
	}

	if outcome.Kind != FetchOk {
		e.recordLeagueState(league, false, string(outcome.Kind))
		return false
	}

	e.storeProjections(ctx, league, outcome.Body)
	e.cache.Put(reqURL, outcome.Body)
	e.recordLeagueState(league, true, "ok")
	return true
}

func (e *Engine) storeProjections(ctx context.Context, league core.League, body []byte) {
	fetchedAt := time.Now().UTC()
	projections, parseErrs := ParseProjectionsEnvelope(body, fetchedAt)

	for _, err := range parseErrs {
		e.logger.Warn("bad_projection_record", "league_id", league.LeagueID, "err", err)
	}
	if len(parseErrs) > 0 {
		e.conversionErrors.Add(int64(len(parseErrs)))
	}

	for i := range projections {
		if projections[i].LeagueID == "" {
			projections[i].LeagueID = league.LeagueID
		}
		if projections[i].LeagueName == "" {
			projections[i].LeagueName = league.LeagueName
		}
	}

	if err := e.projection.UpsertMany(ctx, projections); err != nil {
		e.logger.Error("upsert projections failed", "league_id", league.LeagueID, "err", err)
		return
	}

	e.mu.Lock()
	st := e.leagueStates[league.LeagueID]
	st.Projections = len(projections)
	e.leagueStates[league.LeagueID] = st
	e.mu.Unlock()
}

func (e *Engine) recordLeagueState(league core.League, ok bool, status string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.leagueStates[league.LeagueID]
	st.LeagueID = league.LeagueID
	st.LeagueName = league.LeagueName
	st.LastStatus = status
	if ok {
		st.LastOkAt = time.Now().UTC()
	}
	e.leagueStates[league.LeagueID] = st
}

func (e *Engine) projectionsURL(leagueID string) string {
	u, _ := url.Parse(e.baseURL + "/projections")
	q := u.Query()
	q.Set("include", "new_player,league,stat_type")
	q.Set("per_page", "250")
	q.Set("single_stat", "true")
	q.Set("league_id", leagueID)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConversionErrors returns the running count of projection records that
// failed to parse since process start, per §7's conversion_errors counter.
func (e *Engine) ConversionErrors() int64 {
	return e.conversionErrors.Load()
}

// State returns the /status/ingestion snapshot.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	leagues := make([]LeagueCycleState, 0, len(e.leagueStates))
	for _, st := range e.leagueStates {
		leagues = append(leagues, st)
	}
	sort.Slice(leagues, func(i, j int) bool { return leagues[i].LeagueID < leagues[j].LeagueID })

	return EngineState{
		Running:             e.running,
		LastCycleAt:         e.lastCycleAt,
		LastCycleDurationMs: e.lastCycleDurationMs,
		Leagues:             leagues,
		RateGovernor:        e.governor.State(e.host),
	}
}

// Health returns the /health ingestion summary, consulting the store for
// volume/freshness and the engine's own cycle bookkeeping for degradation.
func (e *Engine) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := e.projection.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}

	e.mu.Lock()
	summary := HealthSummary{
		LastCycleAt: e.lastCycleAt,
		LastCycleOk: !e.lastCycleAllFailed,
		Degraded:    e.consecutiveCycleFails >= 3,
	}
	e.mu.Unlock()

	summary.ProjectionsTotal = stats.Total
	summary.ProjectionsLast24h = stats.Last24h
	summary.OldestFetchedAt = stats.OldestFetched

	return summary, nil
}
