package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"stormlightlabs.org/propline/internal/cache"
	"stormlightlabs.org/propline/internal/core"
)

// ProjectionRepository is the durable store of projection records: query-by-
// status, query-by-freshness, and bulk upsert, per spec §4.5.
type ProjectionRepository struct {
	db     *sql.DB
	sqlxDB *sqlx.DB
	cache  *cache.CachedRepository
}

// NewProjectionRepository builds a repository over db, reusing db's
// connection pool for the sqlx named-parameter batch upsert path.
func NewProjectionRepository(db *sql.DB, cacheClient *cache.Client) *ProjectionRepository {
	return &ProjectionRepository{
		db:     db,
		sqlxDB: sqlx.NewDb(db, "pgx"),
		cache:  cache.NewCachedRepository(cacheClient, "projection"),
	}
}

// projectionRow mirrors the projections table shape for sqlx named-exec binding.
type projectionRow struct {
	ProjectionID string    `db:"projection_id"`
	LeagueID     string    `db:"league_id"`
	LeagueName   string    `db:"league_name"`
	PlayerID     string    `db:"player_id"`
	PlayerName   string    `db:"player_name"`
	Team         string    `db:"team"`
	StatType     string    `db:"stat_type"`
	LineScore    float64   `db:"line_score"`
	StartTime    time.Time `db:"start_time"`
	Status       string    `db:"status"`
	FetchedAt    time.Time `db:"fetched_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Raw          []byte    `db:"raw"`
}

const upsertManySQL = `
	INSERT INTO projections (
		projection_id, league_id, league_name, player_id, player_name, team,
		stat_type, line_score, start_time, status, fetched_at, updated_at, raw
	) VALUES (
		:projection_id, :league_id, :league_name, :player_id, :player_name, :team,
		:stat_type, :line_score, :start_time, :status, :fetched_at, :updated_at, :raw
	)
	ON CONFLICT (projection_id) DO UPDATE SET
		league_id   = EXCLUDED.league_id,
		league_name = EXCLUDED.league_name,
		player_id   = EXCLUDED.player_id,
		player_name = EXCLUDED.player_name,
		team        = EXCLUDED.team,
		stat_type   = EXCLUDED.stat_type,
		fetched_at  = EXCLUDED.fetched_at,
		raw         = EXCLUDED.raw,
		updated_at  = CASE
			WHEN projections.line_score IS DISTINCT FROM EXCLUDED.line_score
			  OR projections.status IS DISTINCT FROM EXCLUDED.status
			  OR projections.start_time IS DISTINCT FROM EXCLUDED.start_time
			THEN EXCLUDED.fetched_at
			ELSE projections.updated_at
		END,
		line_score  = EXCLUDED.line_score,
		start_time  = EXCLUDED.start_time,
		status      = EXCLUDED.status
	WHERE projections.fetched_at <= EXCLUDED.fetched_at
`

// UpsertMany atomically writes a batch of projections. On an update,
// updated_at is set to the incoming fetched_at only when line_score, status
// or start_time changed; fetched_at always advances. Two concurrent upserts
// to the same projection_id produce the same final state as if executed in
// fetched_at order: Postgres serializes conflicting writes to the same row,
// and an existing row is only overwritten by a record whose fetched_at is
// not older than the stored one.
func (r *ProjectionRepository) UpsertMany(ctx context.Context, projections []core.Projection) error {
	if len(projections) == 0 {
		return nil
	}

	rows := make([]projectionRow, 0, len(projections))
	for _, p := range projections {
		rows = append(rows, projectionRow{
			ProjectionID: p.ProjectionID,
			LeagueID:     p.LeagueID,
			LeagueName:   p.LeagueName,
			PlayerID:     p.PlayerID,
			PlayerName:   p.PlayerName,
			Team:         p.Team,
			StatType:     p.StatType,
			LineScore:    p.LineScore,
			StartTime:    p.StartTime,
			Status:       string(p.Status),
			FetchedAt:    p.FetchedAt,
			UpdatedAt:    p.UpdatedAt,
			Raw:          p.Raw,
		})
	}

	tx, err := r.sqlxDB.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStorageUnavailableError("upsert_many", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, upsertManySQL, rows); err != nil {
		return core.NewStorageUnavailableError("upsert_many", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewStorageUnavailableError("upsert_many", err)
	}

	return nil
}

const bettableSelect = `
	SELECT projection_id, league_id, league_name, player_id, player_name, team,
	       stat_type, line_score, start_time, status, fetched_at, updated_at, raw
	FROM projections
	WHERE status IN ('pre_game', 'in_progress')
	  AND start_time >= $1
`

// GetBettable returns currently bettable projections: status in
// {pre_game, in_progress} and start_time >= now-grace, ordered by
// start_time then projection_id for stable pagination. It never fails
// because upstream is down; it only fails on genuine storage errors.
//
// filter.Limit <= 0 is treated as "unset" and resolves to a default page of
// 500. Callers that must honor an explicit limit=0 (an empty page) cannot
// express that through this filter's zero value and need to short-circuit
// before calling in, the way ProjectionRoutes does.
func (r *ProjectionRepository) GetBettable(ctx context.Context, now time.Time, grace time.Duration, filter core.ProjectionFilter) ([]core.Projection, error) {
	query := bettableSelect
	args := []any{now.Add(-grace)}
	argN := 2

	if filter.LeagueID != "" {
		query += fmt.Sprintf(" AND league_id = $%d", argN)
		args = append(args, filter.LeagueID)
		argN++
	}
	if filter.StatType != "" {
		query += fmt.Sprintf(" AND stat_type = $%d", argN)
		args = append(args, strings.ToLower(filter.StatType))
		argN++
	}
	if filter.PlayerName != "" {
		query += fmt.Sprintf(" AND player_name ILIKE $%d", argN)
		args = append(args, "%"+filter.PlayerName+"%")
		argN++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	if limit > 2000 {
		limit = 2000
	}

	query += fmt.Sprintf(" ORDER BY start_time ASC, projection_id ASC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageUnavailableError("get_bettable", err)
	}
	defer rows.Close()

	var out []core.Projection
	for rows.Next() {
		p, err := scanProjection(rows)
		if err != nil {
			return nil, core.NewStorageUnavailableError("get_bettable", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageUnavailableError("get_bettable", err)
	}

	return out, nil
}

// GetByID returns a single projection, or a core.NotFoundError if absent.
func (r *ProjectionRepository) GetByID(ctx context.Context, projectionID string) (*core.Projection, error) {
	query := `
		SELECT projection_id, league_id, league_name, player_id, player_name, team,
		       stat_type, line_score, start_time, status, fetched_at, updated_at, raw
		FROM projections WHERE projection_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, projectionID)
	p, err := scanProjection(row)
	if err == sql.ErrNoRows {
		return nil, core.NewNotFoundError("projection", projectionID)
	}
	if err != nil {
		return nil, core.NewStorageUnavailableError("get_by_id", err)
	}
	return &p, nil
}

// GetByIDs fetches multiple projections in one round trip, used by
// ModelManager.Rank and the enhanced-predictions endpoint.
func (r *ProjectionRepository) GetByIDs(ctx context.Context, ids []string) ([]core.Projection, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT projection_id, league_id, league_name, player_id, player_name, team,
		       stat_type, line_score, start_time, status, fetched_at, updated_at, raw
		FROM projections WHERE projection_id IN (?)
	`, ids)
	if err != nil {
		return nil, core.NewStorageUnavailableError("get_by_ids", err)
	}
	query = r.sqlxDB.Rebind(query)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageUnavailableError("get_by_ids", err)
	}
	defer rows.Close()

	var out []core.Projection
	for rows.Next() {
		p, err := scanProjection(rows)
		if err != nil {
			return nil, core.NewStorageUnavailableError("get_by_ids", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountByStatus returns a count per status, used by /health.
func (r *ProjectionRepository) CountByStatus(ctx context.Context) (map[core.ProjectionStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM projections GROUP BY status`)
	if err != nil {
		return nil, core.NewStorageUnavailableError("count_by_status", err)
	}
	defer rows.Close()

	out := make(map[core.ProjectionStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, core.NewStorageUnavailableError("count_by_status", err)
		}
		out[core.ProjectionStatus(status)] = count
	}
	return out, rows.Err()
}

// Stats reports aggregate freshness/volume, per spec §4.5 stats().
func (r *ProjectionRepository) Stats(ctx context.Context) (core.ProjectionStats, error) {
	var stats core.ProjectionStats
	var oldest, newest sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE fetched_at >= NOW() - INTERVAL '24 hours'),
		       MIN(fetched_at), MAX(fetched_at)
		FROM projections
	`).Scan(&stats.Total, &stats.Last24h, &oldest, &newest)
	if err != nil {
		return stats, core.NewStorageUnavailableError("stats", err)
	}

	if oldest.Valid {
		stats.OldestFetched = oldest.Time
	}
	if newest.Valid {
		stats.NewestFetched = newest.Time
	}

	counts, err := r.CountByStatus(ctx)
	if err != nil {
		return stats, err
	}
	stats.CountByStatus = counts

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProjection(row rowScanner) (core.Projection, error) {
	var p core.Projection
	var leagueName, playerID, playerName, team sql.NullString
	var status string
	var raw []byte

	err := row.Scan(
		&p.ProjectionID, &p.LeagueID, &leagueName, &playerID, &playerName, &team,
		&p.StatType, &p.LineScore, &p.StartTime, &status, &p.FetchedAt, &p.UpdatedAt, &raw,
	)
	if err != nil {
		return p, err
	}

	p.LeagueName = leagueName.String
	p.PlayerID = playerID.String
	p.PlayerName = playerName.String
	p.Team = team.String
	p.Status = core.ProjectionStatus(status)
	p.Source = core.SourceStoreOnly
	p.Raw = raw

	return p, nil
}
