package core

// Recommendation is the ensemble's final call on a Projection.
type Recommendation string

const (
	RecommendOver  Recommendation = "over"
	RecommendUnder Recommendation = "under"
	RecommendPass  Recommendation = "pass"
)

// PerScorerContribution records one scorer's input to an ensembled prediction.
type PerScorerContribution struct {
	ScorerName string  `json:"scorer_name"`
	Value      float64 `json:"value"`
	WeightUsed float64 `json:"weight_used"`
}

// PredictionResult is ModelManager's output for a single Projection. It is
// not persisted by default; it's computed on demand and may be cached with a
// short TTL.
type PredictionResult struct {
	ProjectionID       string                  `json:"projection_id"`
	EnsemblePrediction float64                 `json:"ensemble_prediction"`
	Confidence         float64                 `json:"confidence"`
	ExpectedValue      float64                 `json:"expected_value"`
	Recommendation     Recommendation          `json:"recommendation"`
	SHAPValues         map[string]any          `json:"shap_values,omitempty"`
	PerScorer          []PerScorerContribution `json:"per_scorer"`
	Degraded           bool                    `json:"degraded,omitempty"`
	DegradedReason     string                  `json:"degraded_reason,omitempty"`
	Projection         *Projection             `json:"projection,omitempty"`
}

// DegradedPrediction is the response ensemble.Manager.PredictBatch returns when no
// scorer is ready: ensemble_prediction mirrors the line, confidence is zero,
// and the reason is surfaced rather than hidden. APIGateway must propagate
// this as a 200 with degraded=true, never an error.
func DegradedPrediction(p Projection, reason string) PredictionResult {
	return PredictionResult{
		ProjectionID:       p.ProjectionID,
		EnsemblePrediction: p.LineScore,
		Confidence:         0,
		ExpectedValue:      0,
		Recommendation:     RecommendPass,
		SHAPValues:         map[string]any{"reason": reason},
		Degraded:           true,
		DegradedReason:     reason,
		Projection:         &p,
	}
}
