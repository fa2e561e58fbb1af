package ensemble

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormlightlabs.org/propline/internal/core"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "test"})
	m, err := NewManager(logger)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestManagerRankWithNoScorersDegrades(t *testing.T) {
	m := newTestManager(t)

	results, degraded, reason := m.Rank(context.Background(), []core.Projection{{ProjectionID: "p1"}}, 10)
	require.True(t, degraded, "expected degraded=true with no registered scorers")
	assert.Equal(t, "no_scorers_ready", reason)
	require.Len(t, results, 1)
	assert.Equal(t, core.RecommendPass, results[0].Recommendation)
}

func TestManagerRankWithReadyScorersProducesRecommendation(t *testing.T) {
	m := newTestManager(t)

	baselines := map[string]float64{"points": 20}
	value := NewRollingAverageScorer("rolling_average_test", baselines, 0)
	prob := NewMomentumScorer("momentum_test", baselines, 0)

	value.Train(context.Background())
	prob.Train(context.Background())

	m.Register(value)
	m.Register(prob)

	ready, total := m.ReadyCount()
	require.Equal(t, 2, ready)
	require.Equal(t, 2, total)

	projections := []core.Projection{
		{ProjectionID: "p1", PlayerID: "player-1", StatType: "points", LineScore: 12},
	}

	results, degraded, reason := m.Rank(context.Background(), projections, 10)
	require.False(t, degraded, "reason=%q", reason)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ProjectionID)
	assert.Greater(t, results[0].Confidence, 0.0)
}

func TestManagerRankRespectsK(t *testing.T) {
	m := newTestManager(t)

	projections := make([]core.Projection, 5)
	for i := range projections {
		projections[i] = core.Projection{ProjectionID: string(rune('a' + i))}
	}

	results, _, _ := m.Rank(context.Background(), projections, 2)
	assert.Len(t, results, 2)
}

func TestManagerStatusReflectsTrainingLifecycle(t *testing.T) {
	m := newTestManager(t)
	s := NewRollingAverageScorer("rolling_average_test", nil, 10*time.Millisecond)
	m.Register(s)

	status := m.Status()
	require.Len(t, status, 1)
	assert.False(t, status[0].Ready, "freshly registered scorer should not yet be ready")
	assert.Equal(t, core.ScorerInitializing, status[0].State)

	s.Train(context.Background())

	status = m.Status()
	assert.True(t, status[0].Ready)
	assert.Equal(t, core.ScorerReady, status[0].State)
}

func TestManagerStatusReportsFailedState(t *testing.T) {
	m := newTestManager(t)
	s := NewMomentumScorer("momentum_test", nil, time.Hour)
	m.Register(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Train(ctx)

	status := m.Status()
	require.Len(t, status, 1)
	assert.False(t, status[0].Ready)
	assert.Equal(t, core.ScorerFailed, status[0].State)
}
