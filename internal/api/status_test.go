package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	NewStatusRoutes(testManager, testEngine).RegisterRoutes(mux)

	t.Run("GET /status/training", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/status/training", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body trainingStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 0, body.TotalCount, "no scorers are registered in this harness")
	})

	t.Run("GET /status/ingestion", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/status/ingestion", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body ingestionStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Running, "Engine.Run was never launched")
	})
}
