package ensemble

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"
	"time"

	"stormlightlabs.org/propline/internal/core"
)

// RollingAverageScorer predicts a stat-type baseline and nudges it by a
// deterministic per-player offset derived from the player id's hash. It
// stands in for a trained regression model: the training "background task"
// is a fixed warmup delay, after which the scorer is permanently ready.
type RollingAverageScorer struct {
	name      string
	baselines map[string]float64
	warmup    time.Duration
	ready     atomic.Bool
	accuracy  atomic.Uint64 // math.Float64bits
	failed    atomic.Bool
}

// NewRollingAverageScorer builds a predicted_value scorer with per-stat-type
// baselines and starts its background warmup.
func NewRollingAverageScorer(name string, baselines map[string]float64, warmup time.Duration) *RollingAverageScorer {
	s := &RollingAverageScorer{name: name, baselines: baselines, warmup: warmup}
	s.accuracy.Store(math.Float64bits(0.55))
	return s
}

// Train runs the scorer's background initialization; callers launch this
// as a goroutine immediately after construction.
func (s *RollingAverageScorer) Train(ctx context.Context) {
	timer := time.NewTimer(s.warmup)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.failed.Store(true)
		return
	case <-timer.C:
	}

	s.ready.Store(true)
}

func (s *RollingAverageScorer) Name() string      { return s.name }
func (s *RollingAverageScorer) Kind() core.ScorerKind { return core.ScorerPredictedValue }
func (s *RollingAverageScorer) Ready() bool        { return s.ready.Load() && !s.failed.Load() }
func (s *RollingAverageScorer) Accuracy() float64  { return math.Float64frombits(s.accuracy.Load()) }

func (s *RollingAverageScorer) State() core.ScorerState {
	switch {
	case s.failed.Load():
		return core.ScorerFailed
	case s.ready.Load():
		return core.ScorerReady
	default:
		return core.ScorerInitializing
	}
}

// PredictBatch returns the stat-type baseline nudged by a deterministic,
// bounded per-player offset so repeated calls for the same projection are
// stable within a process lifetime.
func (s *RollingAverageScorer) PredictBatch(projections []core.Projection) ([]core.ScorerOutput, error) {
	out := make([]core.ScorerOutput, len(projections))
	for i, p := range projections {
		baseline, ok := s.baselines[p.StatType]
		if !ok {
			baseline = p.LineScore
		}
		offset := (playerJitter(p.PlayerID) - 0.5) * baseline * 0.12
		out[i] = core.ScorerOutput{
			Value:      baseline + offset,
			Confidence: 0.6,
			SHAP: map[string]any{
				"baseline": baseline,
				"player_offset": offset,
			},
		}
	}
	return out, nil
}

// MomentumScorer leans on recent line movement as a proxy for "probability
// of over": lines set high relative to the stat-type baseline are read as
// the book pricing in recent strong performance.
type MomentumScorer struct {
	name      string
	baselines map[string]float64
	warmup    time.Duration
	ready     atomic.Bool
	accuracy  atomic.Uint64
	failed    atomic.Bool
}

// NewMomentumScorer builds a probability_of_over scorer.
func NewMomentumScorer(name string, baselines map[string]float64, warmup time.Duration) *MomentumScorer {
	s := &MomentumScorer{name: name, baselines: baselines, warmup: warmup}
	s.accuracy.Store(math.Float64bits(0.52))
	return s
}

// Train runs the scorer's background initialization.
func (s *MomentumScorer) Train(ctx context.Context) {
	timer := time.NewTimer(s.warmup)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.failed.Store(true)
		return
	case <-timer.C:
	}

	s.ready.Store(true)
}

func (s *MomentumScorer) Name() string      { return s.name }
func (s *MomentumScorer) Kind() core.ScorerKind { return core.ScorerProbabilityOfOver }
func (s *MomentumScorer) Ready() bool        { return s.ready.Load() && !s.failed.Load() }
func (s *MomentumScorer) Accuracy() float64  { return math.Float64frombits(s.accuracy.Load()) }

func (s *MomentumScorer) State() core.ScorerState {
	switch {
	case s.failed.Load():
		return core.ScorerFailed
	case s.ready.Load():
		return core.ScorerReady
	default:
		return core.ScorerInitializing
	}
}

// PredictBatch maps how far the line sits above/below the stat-type
// baseline onto a probability via a logistic curve.
func (s *MomentumScorer) PredictBatch(projections []core.Projection) ([]core.ScorerOutput, error) {
	out := make([]core.ScorerOutput, len(projections))
	for i, p := range projections {
		baseline, ok := s.baselines[p.StatType]
		if !ok || baseline == 0 {
			baseline = p.LineScore
			if baseline == 0 {
				baseline = 1
			}
		}
		gap := (p.LineScore - baseline) / baseline
		prob := 1.0 / (1.0 + math.Exp(3*gap))
		out[i] = core.ScorerOutput{
			Value:      prob,
			Confidence: 0.5,
			SHAP: map[string]any{
				"line_vs_baseline_gap": gap,
			},
		}
	}
	return out, nil
}

// playerJitter derives a stable value in [0,1) from a player id, used so
// repeated predictions for the same player are deterministic within a run.
func playerJitter(playerID string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	return float64(h.Sum32()%1000) / 1000.0
}
