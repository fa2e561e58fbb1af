package core

import "time"

// ProjectionStatus is the upstream lifecycle state of a Projection.
type ProjectionStatus string

const (
	StatusPreGame    ProjectionStatus = "pre_game"
	StatusInProgress ProjectionStatus = "in_progress"
	StatusFinal      ProjectionStatus = "final"
	StatusVoid       ProjectionStatus = "void"
	StatusUnknown    ProjectionStatus = "unknown"
)

// Bettable reports whether this status is one IngestionEngine and the
// ProjectionStore consider currently wagerable. pre_game counts as bettable;
// treating only an "active" status as bettable was the historical bug that
// made the store appear empty.
func (s ProjectionStatus) Bettable() bool {
	return s == StatusPreGame || s == StatusInProgress
}

// ProjectionSource marks the provenance of a Projection at the moment it was
// materialized into a response.
type ProjectionSource string

const (
	SourceUpstreamLive   ProjectionSource = "upstream_live"
	SourceUpstreamCached ProjectionSource = "upstream_cached"
	SourceStoreOnly      ProjectionSource = "store_only"
)

// Projection is one row per (upstream projection id, fetch snapshot). The
// "current" view is deduped by ProjectionID keeping the most recent FetchedAt.
type Projection struct {
	ProjectionID string           `json:"projection_id"`
	LeagueID     string           `json:"league_id"`
	LeagueName   string           `json:"league_name,omitempty"`
	PlayerID     string           `json:"player_id,omitempty"`
	PlayerName   string           `json:"player_name,omitempty"`
	Team         string           `json:"team,omitempty"`
	StatType     string           `json:"stat_type"`
	LineScore    float64          `json:"line_score"`
	StartTime    time.Time        `json:"start_time"`
	Status       ProjectionStatus `json:"status"`
	Source       ProjectionSource `json:"source"`
	FetchedAt    time.Time        `json:"fetched_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Raw          []byte           `json:"raw,omitempty"`
}

// Bettable reports whether this projection is a "currently bettable" prop:
// status pre_game or in_progress, and start_time not older than now-grace.
func (p Projection) Bettable(now time.Time, grace time.Duration) bool {
	if !p.Status.Bettable() {
		return false
	}
	return !p.StartTime.Before(now.Add(-grace))
}

// ProjectionFilter narrows a get_bettable query.
type ProjectionFilter struct {
	LeagueID   string
	StatType   string
	PlayerName string // substring, case-insensitive
	Limit      int
	IncludeRaw bool
}

// ProjectionStats summarizes the store's contents, per spec §4.5 stats().
type ProjectionStats struct {
	Total         int64                       `json:"total"`
	Last24h       int64                       `json:"last_24h"`
	OldestFetched time.Time                   `json:"oldest_fetched_at"`
	NewestFetched time.Time                   `json:"newest_fetched_at"`
	CountByStatus map[ProjectionStatus]int64 `json:"count_by_status"`
}

// League is a lookup entity: league_id -> league_name, plus an active flag
// controlling whether IngestionEngine walks it.
type League struct {
	LeagueID   string `json:"league_id"`
	LeagueName string `json:"league_name"`
	Active     bool   `json:"active"`
}

// DefaultLeagues seeds the store the first time it is empty. PrizePicks'
// actual league_id values are upstream-assigned and unstable, so these are
// placeholders refreshed opportunistically from GET /leagues.
func DefaultLeagues() []League {
	names := []string{"NFL", "NBA", "MLB", "NHL", "CSGO", "LOL"}
	leagues := make([]League, 0, len(names))
	for _, name := range names {
		leagues = append(leagues, League{
			LeagueID:   "uncataloged:" + name,
			LeagueName: name,
			Active:     true,
		})
	}
	return leagues
}
