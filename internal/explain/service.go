package explain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"stormlightlabs.org/propline/internal/core"
)

const (
	defaultHistoryDepth  = 8
	defaultMaxConcurrent = 2
)

// session is one conversation's ring buffer and state machine.
type session struct {
	mu       sync.Mutex
	state    core.SessionState
	messages []string
	waiters  []chan struct{}
}

func (s *session) push(entry string, depth int) {
	s.messages = append(s.messages, entry)
	if len(s.messages) > depth {
		s.messages = s.messages[len(s.messages)-depth:]
	}
}

// Service turns a (Projection, PredictionResult, question) tuple into an
// Explanation, preferring a local LLM and always falling back to a
// deterministic, structured-field-only narrative when the model is
// unavailable or fails.
type Service struct {
	client           *OllamaClient
	modelPreference  []string
	historyDepth     int
	logger           *log.Logger

	mu            sync.Mutex
	primaryModel  string
	modelsChecked bool
	availableModels []string

	sessionsMu sync.Mutex
	sessions   map[string]*session

	concurrency chan struct{}
}

// NewService builds an ExplanationService. Discover should be called once
// at startup (as a background task) to resolve the primary model.
func NewService(client *OllamaClient, modelPreference []string, logger *log.Logger) *Service {
	return &Service{
		client:          client,
		modelPreference: modelPreference,
		historyDepth:    defaultHistoryDepth,
		logger:          logger,
		sessions:        make(map[string]*session),
		concurrency:     make(chan struct{}, defaultMaxConcurrent),
	}
}

// Discover lists available models and resolves the primary generation model
// by preference order. Safe to call from a background goroutine at startup;
// also safe to retry periodically if the LLM server starts later.
func (s *Service) Discover(ctx context.Context) {
	models, err := s.client.ListModels(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modelsChecked = true
	if err != nil {
		s.logger.Warn("ollama model discovery failed", "err", err)
		s.availableModels = nil
		s.primaryModel = ""
		return
	}

	s.availableModels = models
	s.primaryModel = choosePrimary(models, s.modelPreference)
}

func choosePrimary(available, preference []string) string {
	set := make(map[string]bool, len(available))
	for _, m := range available {
		set[m] = true
	}
	for _, pref := range preference {
		if set[pref] {
			return pref
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}

// AvailableModels returns the last-discovered model list and primary model,
// for /health.
func (s *Service) AvailableModels() (models []string, primary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableModels, s.primaryModel
}

func (s *Service) sessionFor(id string) *session {
	if id == "" {
		return nil
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{state: core.SessionIdle}
		s.sessions[id] = sess
	}
	return sess
}

// Explain produces an Explanation for one chat turn. sessionID may be empty,
// in which case the request is stateless. It never returns an error: every
// failure mode is represented as an Explanation with model_used set to
// "fallback" or "error".
func (s *Service) Explain(ctx context.Context, sessionID string, p core.Projection, result core.PredictionResult, question string) core.Explanation {
	sess := s.sessionFor(sessionID)

	if sess != nil {
		wait := make(chan struct{})
		sess.mu.Lock()
		if sess.state == core.SessionAwaitingModel {
			sess.waiters = append(sess.waiters, wait)
			sess.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return fallback(p, result, "error")
			}
			sess.mu.Lock()
		}
		sess.state = core.SessionAwaitingModel
		sess.mu.Unlock()

		defer func() {
			sess.mu.Lock()
			sess.state = core.SessionResponded
			waiters := sess.waiters
			sess.waiters = nil
			sess.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
		}()
	}

	explanation := s.generate(ctx, p, result, question, sess)

	if sess != nil {
		sess.mu.Lock()
		sess.push(fmt.Sprintf("Q: %s\nA: %s", question, explanation.Text), s.historyDepth)
		sess.mu.Unlock()
	}

	return explanation
}

func (s *Service) generate(ctx context.Context, p core.Projection, result core.PredictionResult, question string, sess *session) (explanation core.Explanation) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("explanation generation panicked", "err", r)
			explanation = fallback(p, result, "error")
		}
	}()

	s.mu.Lock()
	model := s.primaryModel
	s.mu.Unlock()

	if model == "" {
		return fallback(p, result, "fallback")
	}

	select {
	case s.concurrency <- struct{}{}:
		defer func() { <-s.concurrency }()
	case <-ctx.Done():
		return fallback(p, result, "fallback")
	}

	history := ""
	if sess != nil {
		sess.mu.Lock()
		history = strings.Join(sess.messages, "\n\n")
		sess.mu.Unlock()
	}

	prompt := buildPrompt(p, result, question, history)

	raw, err := s.client.Generate(ctx, model, prompt)
	if err != nil {
		s.logger.Warn("ollama generate failed", "err", err)
		return fallback(p, result, "fallback")
	}
	if strings.TrimSpace(raw) == "" {
		return fallback(p, result, "fallback")
	}

	text, factors := parseModelResponse(raw)
	return core.Explanation{
		Text:              text,
		StructuredFactors: factors,
		ModelUsed:         model,
		Confidence:        result.Confidence,
	}
}

// buildPrompt shapes the LLM input from the supplied structured fields only;
// the instruction explicitly forbids fetching new facts.
func buildPrompt(p core.Projection, result core.PredictionResult, question, history string) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that explains sports prop betting predictions. ")
	sb.WriteString("Only reason about the numbers given below and general, well-known sports context. ")
	sb.WriteString("Do not invent statistics or claim to have looked anything up.\n\n")

	fmt.Fprintf(&sb, "Projection: %s (%s), %s, line %.2f, starts %s\n",
		p.PlayerName, p.Team, p.StatType, p.LineScore, p.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Prediction: ensemble=%.3f confidence=%.2f recommendation=%s expected_value=%.3f\n",
		result.EnsemblePrediction, result.Confidence, result.Recommendation, result.ExpectedValue)

	if len(result.PerScorer) > 0 {
		sb.WriteString("Top contributors:\n")
		for _, c := range result.PerScorer {
			fmt.Fprintf(&sb, "- %s: value=%.3f weight=%.2f\n", c.ScorerName, c.Value, c.WeightUsed)
		}
	}

	if history != "" {
		sb.WriteString("\nPrior conversation:\n")
		sb.WriteString(history)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nUser question: %s\n", question)
	sb.WriteString("\nRespond with a short narrative paragraph, then a bulleted list of factors.\n")

	return sb.String()
}

var bulletLine = regexp.MustCompile(`(?m)^\s*[-*]\s+(.*)$`)

// parseModelResponse splits the raw model text into a narrative paragraph
// and a list of bullet factors. If no bullets are found, the whole response
// becomes the narrative and structured_factors is empty.
func parseModelResponse(raw string) (string, []core.Factor) {
	matches := bulletLine.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(raw), nil
	}

	narrative := strings.TrimSpace(bulletLine.Split(raw, -1)[0])

	factors := make([]core.Factor, 0, len(matches))
	for _, m := range matches {
		factors = append(factors, core.Factor{
			Factor:    strings.TrimSpace(m[1]),
			Impact:    0,
			Direction: "positive",
		})
	}

	return narrative, factors
}

// fallback constructs a deterministic Explanation from the PredictionResult
// alone: no invented facts, only a summary of the structured fields.
func fallback(p core.Projection, result core.PredictionResult, modelUsed string) core.Explanation {
	if modelUsed == "error" {
		return core.Explanation{
			Text:              "Explanation unavailable",
			StructuredFactors: nil,
			ModelUsed:         "error",
			Confidence:        0,
		}
	}

	text := fmt.Sprintf(
		"%s's %s line is %.2f. The ensemble model predicts %.2f with %.0f%% confidence, recommending %s (expected value %.3f).",
		p.PlayerName, p.StatType, p.LineScore, result.EnsemblePrediction, result.Confidence*100, result.Recommendation, result.ExpectedValue,
	)

	factors := make([]core.Factor, 0, len(result.PerScorer))
	for _, c := range result.PerScorer {
		direction := "positive"
		if c.Value < p.LineScore {
			direction = "negative"
		}
		factors = append(factors, core.Factor{
			Factor:    c.ScorerName,
			Impact:    c.WeightUsed,
			Direction: direction,
		})
	}

	return core.Explanation{
		Text:              text,
		StructuredFactors: factors,
		ModelUsed:         "fallback",
		Confidence:        result.Confidence,
	}
}
