package repository

import (
	"context"
	"database/sql"

	"stormlightlabs.org/propline/internal/core"
)

// LeagueRepository is the durable lookup table of leagues IngestionEngine
// walks each cycle.
type LeagueRepository struct {
	db *sql.DB
}

// NewLeagueRepository builds a repository over db.
func NewLeagueRepository(db *sql.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

// List returns leagues, optionally filtered to active=true.
func (r *LeagueRepository) List(ctx context.Context, activeOnly bool) ([]core.League, error) {
	query := `SELECT league_id, league_name, active FROM leagues`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY league_name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, core.NewStorageUnavailableError("list_leagues", err)
	}
	defer rows.Close()

	var out []core.League
	for rows.Next() {
		var l core.League
		if err := rows.Scan(&l.LeagueID, &l.LeagueName, &l.Active); err != nil {
			return nil, core.NewStorageUnavailableError("list_leagues", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Upsert inserts or updates one league, called opportunistically from
// IngestionEngine after a successful GET /leagues cycle.
func (r *LeagueRepository) Upsert(ctx context.Context, league core.League) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leagues (league_id, league_name, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (league_id) DO UPDATE SET
			league_name = EXCLUDED.league_name,
			active      = EXCLUDED.active
	`, league.LeagueID, league.LeagueName, league.Active)
	if err != nil {
		return core.NewStorageUnavailableError("upsert_league", err)
	}
	return nil
}

// EnsureDefaults seeds core.DefaultLeagues() the first time the table is
// empty, so IngestionEngine has something to walk before the first
// successful GET /leagues call resolves real league_id values.
func (r *LeagueRepository) EnsureDefaults(ctx context.Context) error {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leagues`).Scan(&count); err != nil {
		return core.NewStorageUnavailableError("ensure_default_leagues", err)
	}
	if count > 0 {
		return nil
	}

	for _, league := range core.DefaultLeagues() {
		if err := r.Upsert(ctx, league); err != nil {
			return err
		}
	}
	return nil
}
