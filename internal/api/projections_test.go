package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectionEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	NewProjectionRoutes(testProjectionRepo, testEngine, 15*time.Minute).RegisterRoutes(mux)

	t.Run("GET /api/prizepicks/projections", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/prizepicks/projections", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body projectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.GreaterOrEqual(t, body.Count, 3)
		for _, p := range body.Projections {
			assert.Nil(t, p.Raw, "raw payload should be stripped by default")
		}
	})

	t.Run("GET /api/prizepicks/projections filtered by league_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/prizepicks/projections?league_id=NBA", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		var body projectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		for _, p := range body.Projections {
			assert.Equal(t, "NBA", p.LeagueID)
		}
	})

	t.Run("GET /api/prizepicks/projections filtered by stat_type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/prizepicks/projections?stat_type=points", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		var body projectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count, "exactly one 'points' fixture projection")
	})

	t.Run("GET /api/prizepicks/projections?limit=0 returns an empty page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/prizepicks/projections?limit=0", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body projectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 0, body.Count)
		assert.Empty(t, body.Projections)
	})

	t.Run("GET /api/prizepicks/projections surfaces conversion_errors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/prizepicks/projections", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		var body projectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, testEngine.ConversionErrors(), body.ConversionErrors)
	})
}
