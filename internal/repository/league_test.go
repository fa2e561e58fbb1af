package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormlightlabs.org/propline/internal/core"
)

func setupLeagueRepoTest(t *testing.T) *LeagueRepository {
	t.Helper()
	return NewLeagueRepository(setupProjectionRepoTest(t).db)
}

func TestLeagueRepositoryUpsertAndList(t *testing.T) {
	repo := setupLeagueRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, core.League{LeagueID: "NBA", LeagueName: "NBA", Active: true}))
	require.NoError(t, repo.Upsert(ctx, core.League{LeagueID: "MLB", LeagueName: "MLB", Active: false}))

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activeOnly, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, "NBA", activeOnly[0].LeagueID)
}

func TestLeagueRepositoryUpsertOverwritesExisting(t *testing.T) {
	repo := setupLeagueRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, core.League{LeagueID: "NBA", LeagueName: "NBA", Active: true}))
	require.NoError(t, repo.Upsert(ctx, core.League{LeagueID: "NBA", LeagueName: "NBA", Active: false}))

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)
}

func TestLeagueRepositoryEnsureDefaultsOnlySeedsWhenEmpty(t *testing.T) {
	repo := setupLeagueRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.EnsureDefaults(ctx))

	seeded, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, len(core.DefaultLeagues()), len(seeded))

	require.NoError(t, repo.Upsert(ctx, core.League{LeagueID: seeded[0].LeagueID, LeagueName: "Renamed", Active: seeded[0].Active}))
	require.NoError(t, repo.EnsureDefaults(ctx))

	afterSecondCall, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, afterSecondCall, len(seeded), "EnsureDefaults must not reseed a non-empty table")
}
