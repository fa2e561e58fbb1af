package ingest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostState tracks per-host backoff progress. Purely in-memory; reset on
// process restart is acceptable per spec §3.
type hostState struct {
	limiter             *rate.Limiter
	consecutiveFailures int
	nextAllowedAt       time.Time
	currentBackoff      time.Duration
}

// RateGovernorState is the read-only snapshot exposed on /status/ingestion.
type RateGovernorState struct {
	NextAllowedAt       time.Time     `json:"next_allowed_at"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	CurrentBackoff      time.Duration `json:"-"`
}

// RateGovernor enforces a minimum spacing between requests to the same host
// and implements the fixed exponential backoff ladder across retries. One
// host's nextAllowedAt is shared by all league requests against it, so two
// racing callers never both proceed: the rate.Limiter's token bucket and the
// mutex-guarded backoff state together make exactly one win the race.
type RateGovernor struct {
	mu           sync.Mutex
	hosts        map[string]*hostState
	minSpacing   time.Duration
	backoffSteps []time.Duration
}

// NewRateGovernor builds a governor with the given minimum per-host spacing
// and backoff ladder (e.g. []time.Duration{10s, 20s, 40s}).
func NewRateGovernor(minSpacing time.Duration, backoffSteps []time.Duration) *RateGovernor {
	return &RateGovernor{
		hosts:        make(map[string]*hostState),
		minSpacing:   minSpacing,
		backoffSteps: backoffSteps,
	}
}

func (g *RateGovernor) stateFor(host string) *hostState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.hosts[host]
	if !ok {
		st = &hostState{
			limiter: rate.NewLimiter(rate.Every(g.minSpacing), 1),
		}
		g.hosts[host] = st
	}
	return st
}

// Wait blocks until host may be called again, honoring both the minimum
// spacing token bucket and any outstanding backoff from a prior failure.
// It returns early if ctx is cancelled.
func (g *RateGovernor) Wait(ctx context.Context, host string) error {
	st := g.stateFor(host)

	g.mu.Lock()
	wait := time.Until(st.nextAllowedAt)
	g.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return st.limiter.Wait(ctx)
}

// OnSuccess resets the host's backoff state after a successful request.
func (g *RateGovernor) OnSuccess(host string) {
	st := g.stateFor(host)
	g.mu.Lock()
	st.consecutiveFailures = 0
	st.currentBackoff = 0
	st.nextAllowedAt = time.Time{}
	g.mu.Unlock()
}

// OnFailure advances the host's backoff ladder and reports whether the
// cycle should retry (true) or abandon the request for this cycle (false,
// once the ladder is exhausted).
func (g *RateGovernor) OnFailure(host string) (retryAfter time.Duration, shouldRetry bool) {
	st := g.stateFor(host)

	g.mu.Lock()
	defer g.mu.Unlock()

	if st.consecutiveFailures >= len(g.backoffSteps) {
		return 0, false
	}

	delay := g.backoffSteps[st.consecutiveFailures]
	st.consecutiveFailures++
	st.currentBackoff = delay
	st.nextAllowedAt = time.Now().Add(delay)

	return delay, true
}

// State returns the current governor state for a host, for /status/ingestion.
func (g *RateGovernor) State(host string) RateGovernorState {
	st := g.stateFor(host)
	g.mu.Lock()
	defer g.mu.Unlock()
	return RateGovernorState{
		NextAllowedAt:       st.nextAllowedAt,
		ConsecutiveFailures: st.consecutiveFailures,
		CurrentBackoff:      st.currentBackoff,
	}
}
