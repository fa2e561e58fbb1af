package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropOllamaChat(t *testing.T) {
	mux := http.NewServeMux()
	NewPropOllamaRoutes(testProjectionRepo, testManager, testExplainSvc).RegisterRoutes(mux)

	t.Run("no projection context", func(t *testing.T) {
		reqBody, err := json.Marshal(map[string]any{
			"session_id": "sess-1",
			"message":    "why?",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/propollama/chat", bytes.NewReader(reqBody))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body propOllamaResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "sess-1", body.SessionID)
		// No LLM models have been discovered, so the ExplanationService must
		// fall back rather than attempt an Ollama call.
		assert.Equal(t, "fallback", body.ModelUsed)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/propollama/chat", bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
