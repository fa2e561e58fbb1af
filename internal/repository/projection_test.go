package repository

import (
	"context"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormlightlabs.org/propline/internal/core"
	"stormlightlabs.org/propline/internal/db"
	"stormlightlabs.org/propline/internal/testutils"
)

func setupProjectionRepoTest(t *testing.T) *ProjectionRepository {
	t.Helper()
	ctx := context.Background()

	projectRoot, err := testutils.GetProjectRoot()
	require.NoError(t, err)

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(projectRoot))

	container, err := testutils.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		os.Chdir(originalDir)
		require.NoError(t, container.Terminate(ctx))
	})

	database, err := db.Connect(container.ConnStr)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(ctx))

	return NewProjectionRepository(database.DB, nil)
}

func sampleProjection(id, leagueID, statType string, line float64, start time.Time) core.Projection {
	now := time.Now().UTC()
	return core.Projection{
		ProjectionID: id,
		LeagueID:     leagueID,
		PlayerID:     "player-" + id,
		PlayerName:   "Test Player",
		StatType:     statType,
		LineScore:    line,
		StartTime:    start,
		Status:       core.StatusPreGame,
		FetchedAt:    now,
		UpdatedAt:    now,
	}
}

func TestProjectionRepositoryUpsertManyInsertsAndUpdates(t *testing.T) {
	repo := setupProjectionRepoTest(t)
	ctx := context.Background()

	leagueRepo := NewLeagueRepository(repo.db)
	require.NoError(t, leagueRepo.Upsert(ctx, core.League{LeagueID: "NBA", LeagueName: "NBA", Active: true}))

	start := time.Now().UTC().Add(24 * time.Hour)
	proj := sampleProjection("proj-1", "NBA", "points", 20, start)

	require.NoError(t, repo.UpsertMany(ctx, []core.Projection{proj}))

	fetched, err := repo.GetByID(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, fetched.LineScore)
	firstUpdatedAt := fetched.UpdatedAt

	// Re-upserting with an unchanged line/status/start_time must not
	// advance updated_at.
	unchanged := proj
	unchanged.FetchedAt = time.Now().UTC()
	require.NoError(t, repo.UpsertMany(ctx, []core.Projection{unchanged}))

	reFetched, err := repo.GetByID(ctx, "proj-1")
	require.NoError(t, err)
	assert.True(t, reFetched.UpdatedAt.Equal(firstUpdatedAt), "updated_at should not advance when scalar fields are unchanged")

	// Changing the line score must advance updated_at.
	changed := proj
	changed.LineScore = 22.5
	changed.FetchedAt = time.Now().UTC()
	require.NoError(t, repo.UpsertMany(ctx, []core.Projection{changed}))

	finalFetched, err := repo.GetByID(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 22.5, finalFetched.LineScore)
	assert.True(t, finalFetched.UpdatedAt.After(firstUpdatedAt), "updated_at should advance when the line score changes")
}

func TestProjectionRepositoryGetBettableFiltersStaleAndFinal(t *testing.T) {
	repo := setupProjectionRepoTest(t)
	ctx := context.Background()

	leagueRepo := NewLeagueRepository(repo.db)
	require.NoError(t, leagueRepo.Upsert(ctx, core.League{LeagueID: "NBA", LeagueName: "NBA", Active: true}))

	now := time.Now().UTC()
	future := sampleProjection("proj-future", "NBA", "points", 20, now.Add(time.Hour))
	past := sampleProjection("proj-past", "NBA", "points", 20, now.Add(-48*time.Hour))
	final := sampleProjection("proj-final", "NBA", "points", 20, now.Add(time.Hour))
	final.Status = core.StatusFinal

	require.NoError(t, repo.UpsertMany(ctx, []core.Projection{future, past, final}))

	results, err := repo.GetBettable(ctx, now, time.Minute, core.ProjectionFilter{LeagueID: "NBA"})
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ProjectionID)
	}
	assert.Contains(t, ids, "proj-future")
	assert.NotContains(t, ids, "proj-past", "a game more than grace seconds in the past should be excluded")
	assert.NotContains(t, ids, "proj-final", "a final-status projection is not bettable")
}

func TestProjectionRepositoryStats(t *testing.T) {
	repo := setupProjectionRepoTest(t)
	ctx := context.Background()

	leagueRepo := NewLeagueRepository(repo.db)
	require.NoError(t, leagueRepo.Upsert(ctx, core.League{LeagueID: "NFL", LeagueName: "NFL", Active: true}))

	require.NoError(t, repo.UpsertMany(ctx, []core.Projection{
		sampleProjection("stats-1", "NFL", "passing_yards", 250, time.Now().Add(time.Hour)),
		sampleProjection("stats-2", "NFL", "passing_yards", 260, time.Now().Add(2*time.Hour)),
	}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Total, int64(2))
	assert.GreaterOrEqual(t, stats.CountByStatus[core.StatusPreGame], int64(2))
}
