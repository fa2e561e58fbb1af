package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormlightlabs.org/propline/internal/ensemble"
)

func TestPredictionEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	NewPredictionRoutes(testProjectionRepo, testManager, 0).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/predictions/prizepicks/enhanced", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body predictionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// No scorers are registered in this harness, so Rank degrades rather
	// than erroring; the response still has one entry per bettable
	// projection with a degraded_reason explaining why.
	assert.True(t, body.Degraded, "expected degraded=true with no scorers registered")
	assert.NotEmpty(t, body.DegradedReason)
}

// TestPredictionEndpointPartialScorerReadiness exercises the case where some
// but not all registered scorers are ready and none have failed: the overall
// response must still degrade because the full ensemble isn't available.
func TestPredictionEndpointPartialScorerReadiness(t *testing.T) {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "test"})
	manager, err := ensemble.NewManager(logger)
	require.NoError(t, err)
	defer manager.Close()

	ready := ensemble.NewRollingAverageScorer("ready_scorer", nil, 0)
	ready.Train(context.Background())
	manager.Register(ready)

	initializing := ensemble.NewMomentumScorer("initializing_scorer", nil, time.Hour)
	manager.Register(initializing)

	readyCount, total := manager.ReadyCount()
	require.Equal(t, 1, readyCount)
	require.Equal(t, 2, total)

	mux := http.NewServeMux()
	NewPredictionRoutes(testProjectionRepo, manager, 0).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/predictions/prizepicks/enhanced", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body predictionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.True(t, body.Degraded, "expected degraded=true with only 1 of 2 scorers ready")
	assert.Contains(t, body.DegradedReason, "scorers ready")
}
