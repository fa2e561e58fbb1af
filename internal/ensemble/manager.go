// Package ensemble implements ModelManager: a registry of Scorer instances,
// their background readiness lifecycle, and the ensembling/ranking rules
// that turn per-scorer outputs into PredictionResults.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/panjf2000/ants/v2"

	"stormlightlabs.org/propline/internal/core"
)

// sigmaByStatType is a per-stat-type dispersion constant used to map a
// standardized value-scorer gap onto a probability for expected_value.
// Stat types not listed fall back to defaultSigma.
var sigmaByStatType = map[string]float64{
	"points":     6.0,
	"rebounds":   3.0,
	"assists":    2.5,
	"strikeouts": 2.0,
	"passing_yards": 45.0,
	"rushing_yards": 25.0,
}

const defaultSigma = 5.0

// marginByStatType is the per-stat-type threshold a value-scorer ensemble
// prediction must clear the line by before recommending over/under.
var marginByStatType = map[string]float64{}

const defaultMargin = 0.5

// Manager owns the scorer registry and produces ensembled, ranked
// PredictionResults on demand. All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	scorers []core.Scorer
	pool    *ants.Pool
	logger  *log.Logger
}

// NewManager constructs a Manager with a worker pool sized min(4, NumCPU)
// for predict_batch CPU offload, per §5.
func NewManager(logger *log.Logger) (*Manager, error) {
	size := runtime.NumCPU()
	if size > 4 {
		size = 4
	}
	if size < 1 {
		size = 1
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &Manager{pool: pool, logger: logger}, nil
}

// Register adds a scorer to the registry. Scorers are expected to already
// be constructed in the unready state with their own background
// initialization task launched by the caller.
func (m *Manager) Register(s core.Scorer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scorers = append(m.scorers, s)
}

// Close releases the worker pool.
func (m *Manager) Close() {
	m.pool.Release()
}

// Status returns the /status/training snapshot.
func (m *Manager) Status() []core.ScorerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.ScorerStatus, 0, len(m.scorers))
	for _, s := range m.scorers {
		out = append(out, core.ScorerStatus{
			Name:     s.Name(),
			Kind:     s.Kind(),
			Ready:    s.Ready(),
			Accuracy: s.Accuracy(),
			State:    s.State(),
		})
	}
	return out
}

// ReadyCount reports how many registered scorers are currently ready.
func (m *Manager) ReadyCount() (ready, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.scorers {
		total++
		if s.Ready() {
			ready++
		}
	}
	return ready, total
}

// EnsembleAccuracy is the mean accuracy of ready scorers, used in /health.
func (m *Manager) EnsembleAccuracy() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum float64
	var count int
	for _, s := range m.scorers {
		if s.Ready() {
			sum += s.Accuracy()
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

type scorerBatch struct {
	scorer  core.Scorer
	outputs []core.ScorerOutput
	err     error
}

// PredictBatch scores every projection against every ready scorer, using
// the worker pool to offload each scorer's predict_batch call. A scorer
// whose call panics or errors is excluded from this round only: the
// manager does not mark it unready, so it is called again in later rounds
// for as long as its own Ready() reports true.
func (m *Manager) PredictBatch(ctx context.Context, projections []core.Projection) ([]core.PredictionResult, bool, string) {
	m.mu.RLock()
	ready := make([]core.Scorer, 0, len(m.scorers))
	for _, s := range m.scorers {
		if s.Ready() {
			ready = append(ready, s)
		}
	}
	m.mu.RUnlock()

	if len(ready) == 0 {
		results := make([]core.PredictionResult, 0, len(projections))
		for _, p := range projections {
			results = append(results, core.DegradedPrediction(p, "no_scorers_ready"))
		}
		return results, true, "no_scorers_ready"
	}

	batches := make([]scorerBatch, len(ready))
	var wg sync.WaitGroup
	degraded := false

	for i, s := range ready {
		i, s := i, s
		wg.Add(1)
		submitErr := m.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					batches[i].err = fmt.Errorf("scorer %s panicked: %v", s.Name(), r)
				}
			}()
			outputs, err := s.PredictBatch(projections)
			batches[i] = scorerBatch{scorer: s, outputs: outputs, err: err}
		})
		if submitErr != nil {
			wg.Done()
			degraded = true
			batches[i] = scorerBatch{scorer: s, err: submitErr}
		}
	}
	wg.Wait()

	byKind := make(map[core.ScorerKind][]scorerBatch)
	for _, b := range batches {
		if b.err != nil {
			if b.scorer != nil {
				m.logger.Warn("scorer predict_batch failed", "scorer", b.scorer.Name(), "err", b.err)
			}
			degraded = true
			continue
		}
		byKind[b.scorer.Kind()] = append(byKind[b.scorer.Kind()], b)
	}

	results := make([]core.PredictionResult, 0, len(projections))
	for idx, p := range projections {
		results = append(results, ensembleOne(p, idx, byKind))
	}

	reason := ""
	if degraded {
		reason = "partial_scorer_failure"
	}
	return results, degraded, reason
}

// Rank scores projections and returns the top-k by the lexicographic key
// (recommendation != pass desc, expected_value desc, confidence desc,
// projection_id asc), per §4.6.
func (m *Manager) Rank(ctx context.Context, projections []core.Projection, k int) ([]core.PredictionResult, bool, string) {
	results, degraded, reason := m.PredictBatch(ctx, projections)

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		ai := a.Recommendation != core.RecommendPass
		bi := b.Recommendation != core.RecommendPass
		if ai != bi {
			return ai
		}
		if a.ExpectedValue != b.ExpectedValue {
			return a.ExpectedValue > b.ExpectedValue
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.ProjectionID < b.ProjectionID
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}

	return results, degraded, reason
}

// ensembleOne combines one projection's per-kind scorer outputs into a
// single PredictionResult, per the weighting and recommendation rules
// in §4.6. A projection with no usable scorer output in either kind is
// returned as a degraded result.
func ensembleOne(p core.Projection, idx int, byKind map[core.ScorerKind][]scorerBatch) core.PredictionResult {
	if valueBatches, ok := byKind[core.ScorerPredictedValue]; ok && len(valueBatches) > 0 {
		return ensembleValue(p, idx, valueBatches)
	}
	if probBatches, ok := byKind[core.ScorerProbabilityOfOver]; ok && len(probBatches) > 0 {
		return ensembleProbability(p, idx, probBatches)
	}
	return core.DegradedPrediction(p, "no_scorers_ready")
}

func weights(batches []scorerBatch) []float64 {
	var sum float64
	for _, b := range batches {
		sum += b.scorer.Accuracy()
	}
	w := make([]float64, len(batches))
	if sum <= 0 {
		uniform := 1.0 / float64(len(batches))
		for i := range w {
			w[i] = uniform
		}
		return w
	}
	for i, b := range batches {
		w[i] = b.scorer.Accuracy() / sum
	}
	return w
}

func ensembleValue(p core.Projection, idx int, batches []scorerBatch) core.PredictionResult {
	w := weights(batches)

	var ensemble, confSum float64
	contributions := make([]core.PerScorerContribution, 0, len(batches))
	values := make([]float64, 0, len(batches))

	for i, b := range batches {
		out := b.outputs[idx]
		ensemble += w[i] * out.Value
		confSum += w[i] * out.Confidence
		values = append(values, out.Value)
		contributions = append(contributions, core.PerScorerContribution{
			ScorerName: b.scorer.Name(),
			Value:      out.Value,
			WeightUsed: w[i],
		})
	}

	confidence := confSum - dispersionPenalty(values, w)
	confidence = clamp01(confidence)

	margin := marginByStatType[p.StatType]
	if margin == 0 {
		margin = defaultMargin
	}

	rec := core.RecommendPass
	switch {
	case ensemble > p.LineScore+margin:
		rec = core.RecommendOver
	case ensemble < p.LineScore-margin:
		rec = core.RecommendUnder
	}

	sigma := sigmaByStatType[p.StatType]
	if sigma == 0 {
		sigma = defaultSigma
	}
	gap := (ensemble - p.LineScore) / sigma
	prob := logistic(gap)
	ev := expectedValue(rec, prob)

	return core.PredictionResult{
		ProjectionID:       p.ProjectionID,
		EnsemblePrediction: ensemble,
		Confidence:         confidence,
		ExpectedValue:      ev,
		Recommendation:     rec,
		PerScorer:          contributions,
		Projection:         &p,
	}
}

func ensembleProbability(p core.Projection, idx int, batches []scorerBatch) core.PredictionResult {
	w := weights(batches)

	var prob, confSum float64
	contributions := make([]core.PerScorerContribution, 0, len(batches))
	values := make([]float64, 0, len(batches))

	for i, b := range batches {
		out := b.outputs[idx]
		prob += w[i] * out.Value
		confSum += w[i] * out.Confidence
		values = append(values, out.Value)
		contributions = append(contributions, core.PerScorerContribution{
			ScorerName: b.scorer.Name(),
			Value:      out.Value,
			WeightUsed: w[i],
		})
	}

	confidence := confSum - dispersionPenalty(values, w)
	confidence = clamp01(confidence)

	const tau = 0.03
	rec := core.RecommendPass
	switch {
	case prob > 0.5+tau:
		rec = core.RecommendOver
	case prob < 0.5-tau:
		rec = core.RecommendUnder
	}

	ev := expectedValue(rec, prob)

	return core.PredictionResult{
		ProjectionID:       p.ProjectionID,
		EnsemblePrediction: prob,
		Confidence:         confidence,
		ExpectedValue:      ev,
		Recommendation:     rec,
		PerScorer:          contributions,
		Projection:         &p,
	}
}

// expectedValue maps a recommendation and a win probability onto an EV
// against a symmetric -110 line (break-even probability ~0.524).
func expectedValue(rec core.Recommendation, winProb float64) float64 {
	if rec == core.RecommendPass {
		return 0
	}
	p := winProb
	if rec == core.RecommendUnder {
		p = 1 - winProb
	}
	payout := (100.0 / 110.0)
	return p*payout - (1 - p)
}

// dispersionPenalty reduces confidence proportionally to the weighted
// variance of per-scorer values: scorers that disagree should yield a
// less confident ensemble even if each is individually confident.
func dispersionPenalty(values, w []float64) float64 {
	var mean float64
	for i, v := range values {
		mean += w[i] * v
	}

	var variance float64
	for i, v := range values {
		d := v - mean
		variance += w[i] * d * d
	}

	return clamp01(variance / (1 + variance))
}

func logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
