package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthRoutes(testEngine, testManager, testExplainSvc, testSupervisor).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Contains(t, []string{"ok", "degraded"}, body.Status)
	assert.GreaterOrEqual(t, body.Ingestion.ProjectionsTotal, int64(3))
	assert.Equal(t, 0, body.Models.TotalCount, "no scorers are registered in this harness")
	assert.Empty(t, body.LLM.AvailableModels, "Discover was never called")
}
