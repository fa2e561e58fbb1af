package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stormlightlabs.org/propline/internal/core"
)

// jsonAPIResource is one entry of a PrizePicks JSON:API-ish envelope, either
// in the top-level data array or the included array.
type jsonAPIResource struct {
	Type          string          `json:"type"`
	ID            string          `json:"id"`
	Attributes    json.RawMessage `json:"attributes"`
	Relationships json.RawMessage `json:"relationships,omitempty"`
}

// jsonAPIEnvelope is the outer shape returned by both /leagues and /projections.
type jsonAPIEnvelope struct {
	Data     json.RawMessage    `json:"data"`
	Included []jsonAPIResource  `json:"included"`
}

type relationshipRef struct {
	Data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

type projectionRelationships struct {
	NewPlayer relationshipRef `json:"new_player"`
	League    relationshipRef `json:"league"`
	StatType  relationshipRef `json:"stat_type"`
}

type projectionAttributes struct {
	Description string  `json:"description"`
	LineScore   any     `json:"line_score"`
	StartTime   string  `json:"start_time"`
	StatType    string  `json:"stat_type"`
	Status      string  `json:"status"`
	OddsType    string  `json:"odds_type"`
}

type playerAttributes struct {
	Name string `json:"name"`
	Team string `json:"team"`
}

type leagueAttributes struct {
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

// ParseLeaguesEnvelope decodes a /leagues JSON:API response into core.League
// rows. Malformed rows are skipped, not fatal to the whole batch; a single
// bad record must never sink an entire cycle.
func ParseLeaguesEnvelope(body []byte) ([]core.League, error) {
	var env jsonAPIEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse leagues envelope: %w", err)
	}

	var rows []jsonAPIResource
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("parse leagues data array: %w", err)
	}

	leagues := make([]core.League, 0, len(rows))
	for _, row := range rows {
		var attrs leagueAttributes
		if err := json.Unmarshal(row.Attributes, &attrs); err != nil {
			continue
		}
		active := true
		if attrs.Active != nil {
			active = *attrs.Active
		}
		leagues = append(leagues, core.League{
			LeagueID:   row.ID,
			LeagueName: attrs.Name,
			Active:     active,
		})
	}

	return leagues, nil
}

// ParseProjectionsEnvelope decodes a /projections JSON:API response,
// resolving player/league/stat_type references from the included array.
// Rows whose line_score does not parse as a finite decimal are quarantined
// via core.ValidationError rather than served, per spec §3.
func ParseProjectionsEnvelope(body []byte, fetchedAt time.Time) ([]core.Projection, []error) {
	var env jsonAPIEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, []error{fmt.Errorf("parse projections envelope: %w", err)}
	}

	var rows []jsonAPIResource
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, []error{fmt.Errorf("parse projections data array: %w", err)}
	}

	players := make(map[string]playerAttributes)
	leagues := make(map[string]leagueAttributes)
	for _, inc := range env.Included {
		switch inc.Type {
		case "new_player", "player":
			var attrs playerAttributes
			if json.Unmarshal(inc.Attributes, &attrs) == nil {
				players[inc.ID] = attrs
			}
		case "league":
			var attrs leagueAttributes
			if json.Unmarshal(inc.Attributes, &attrs) == nil {
				leagues[inc.ID] = attrs
			}
		}
	}

	projections := make([]core.Projection, 0, len(rows))
	var errs []error

	for _, row := range rows {
		var attrs projectionAttributes
		if err := json.Unmarshal(row.Attributes, &attrs); err != nil {
			errs = append(errs, core.NewValidationError("attributes", row.ID, "malformed attributes object"))
			continue
		}

		var rels projectionRelationships
		if len(row.Relationships) > 0 {
			_ = json.Unmarshal(row.Relationships, &rels)
		}

		lineScore, ok := parseFiniteDecimal(attrs.LineScore)
		if !ok {
			errs = append(errs, core.NewValidationError("line_score", row.ID, "does not parse as a finite decimal"))
			continue
		}

		startTime, err := time.Parse(time.RFC3339, attrs.StartTime)
		if err != nil {
			errs = append(errs, core.NewValidationError("start_time", row.ID, "not a valid timestamp"))
			continue
		}

		p := core.Projection{
			ProjectionID: row.ID,
			LeagueID:     rels.League.Data.ID,
			StatType:     strings.ToLower(strings.TrimSpace(attrs.StatType)),
			LineScore:    lineScore,
			StartTime:    startTime,
			Status:       normalizeStatus(attrs.Status),
			Source:       core.SourceUpstreamLive,
			FetchedAt:    fetchedAt,
			UpdatedAt:    fetchedAt,
			Raw:          row.Attributes,
		}

		if player, ok := players[rels.NewPlayer.Data.ID]; ok {
			p.PlayerID = rels.NewPlayer.Data.ID
			p.PlayerName = player.Name
			p.Team = player.Team
		}

		if league, ok := leagues[p.LeagueID]; ok {
			p.LeagueName = league.Name
		}

		projections = append(projections, p)
	}

	return projections, errs
}

func parseFiniteDecimal(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !isInfOrNaN(val)
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, !isInfOrNaN(f)
	default:
		return 0, false
	}
}

func isInfOrNaN(f float64) bool {
	return f != f || f > 1e308 || f < -1e308
}

func normalizeStatus(raw string) core.ProjectionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pre_game", "scheduled", "pregame":
		return core.StatusPreGame
	case "in_progress", "live":
		return core.StatusInProgress
	case "final", "completed", "complete":
		return core.StatusFinal
	case "void", "cancelled", "canceled":
		return core.StatusVoid
	default:
		return core.StatusUnknown
	}
}
