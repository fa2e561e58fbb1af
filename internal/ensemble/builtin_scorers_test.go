package ensemble

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormlightlabs.org/propline/internal/core"
)

func TestRollingAverageScorerBecomesReadyAfterWarmup(t *testing.T) {
	s := NewRollingAverageScorer("rolling_average_test", map[string]float64{"points": 20}, 5*time.Millisecond)
	require.False(t, s.Ready(), "expected scorer to be unready before Train completes")

	s.Train(context.Background())

	assert.True(t, s.Ready())
	assert.Equal(t, core.ScorerPredictedValue, s.Kind())
}

func TestRollingAverageScorerTrainCancelled(t *testing.T) {
	s := NewRollingAverageScorer("rolling_average_test", nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Train(ctx)

	assert.False(t, s.Ready(), "expected scorer to stay unready when Train's context is cancelled")
	assert.Equal(t, core.ScorerFailed, s.State())
}

func TestRollingAverageScorerStateTransitions(t *testing.T) {
	s := NewRollingAverageScorer("rolling_average_test", nil, 5*time.Millisecond)
	assert.Equal(t, core.ScorerInitializing, s.State())

	s.Train(context.Background())
	assert.Equal(t, core.ScorerReady, s.State())
}

func TestRollingAverageScorerPredictBatchUsesBaselineAndFallsBack(t *testing.T) {
	s := NewRollingAverageScorer("rolling_average_test", map[string]float64{"points": 20}, 0)

	projections := []core.Projection{
		{ProjectionID: "p1", PlayerID: "player-1", StatType: "points", LineScore: 18},
		{ProjectionID: "p2", PlayerID: "player-2", StatType: "unknown_stat", LineScore: 7.5},
	}

	outputs, err := s.PredictBatch(projections)
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	// Known stat type: value should be within the deterministic +-6% jitter
	// band around the 20-point baseline.
	assert.InDelta(t, 20, outputs[0].Value, 20*0.06)

	// Unknown stat type falls back to the projection's own line score as
	// the baseline.
	assert.InDelta(t, 7.5, outputs[1].Value, 7.5*0.06)
}

func TestMomentumScorerPredictBatchMonotonicInGap(t *testing.T) {
	s := NewMomentumScorer("momentum_test", map[string]float64{"points": 20}, 0)

	below, err := s.PredictBatch([]core.Projection{{StatType: "points", LineScore: 10}})
	require.NoError(t, err)
	above, err := s.PredictBatch([]core.Projection{{StatType: "points", LineScore: 30}})
	require.NoError(t, err)

	assert.Greater(t, below[0].Value, above[0].Value,
		"a line set below baseline should imply a higher over-probability than one set above it")
	assert.Equal(t, core.ScorerProbabilityOfOver, s.Kind())
}

func TestMomentumScorerZeroBaselineFallsBackToLineScore(t *testing.T) {
	s := NewMomentumScorer("momentum_test", map[string]float64{}, 0)

	outputs, err := s.PredictBatch([]core.Projection{{StatType: "obscure_stat", LineScore: 0}})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	// baseline falls back to 1 when both the lookup and the line score are
	// zero, so gap is -1 and the probability is a predictable constant.
	want := 1.0 / (1.0 + math.Exp(-3))
	assert.InDelta(t, want, outputs[0].Value, 1e-9)
}
