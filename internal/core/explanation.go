package core

// Factor is one structured contributor to an Explanation's narrative,
// derived from SHAP values when present or a heuristic fallback otherwise.
type Factor struct {
	Factor    string  `json:"factor"`
	Impact    float64 `json:"impact"`
	Direction string  `json:"direction"` // "positive" | "negative"
}

// Explanation is ExplanationService's output for a chat/explain request.
type Explanation struct {
	Text              string   `json:"text"`
	StructuredFactors []Factor `json:"structured_factors"`
	ModelUsed         string   `json:"model_used"`
	Confidence        float64  `json:"confidence"`
}

// SessionState is the per-session conversation state machine ExplanationService
// drives: idle -> awaiting_model -> responded -> idle. While awaiting_model,
// concurrent requests for the same session queue rather than racing the LLM.
type SessionState string

const (
	SessionIdle          SessionState = "idle"
	SessionAwaitingModel SessionState = "awaiting_model"
	SessionResponded     SessionState = "responded"
)
