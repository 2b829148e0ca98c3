package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/usecase"
)

func (h *Handler) LogGameStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LogGameStats")
	defer span.End()

	var req logGameStatsRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	span.SetAttributes(pairAttributes(req.PlayerID, req.TeamID)...)
	span.SetAttributes(attribute.Int64("stats.game_id", req.GameID))

	result, err := h.statsService.LogGameStats(ctx, req.toDomain())
	if err != nil {
		h.logger.WarnContext(ctx, "log game stats failed",
			"player_id", req.PlayerID,
			"team_id", req.TeamID,
			"game_id", req.GameID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, writeResultToDTO(result))
}

func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayerStats")
	defer span.End()

	playerID, err := parseSubjectID(r.PathValue("playerID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	span.SetAttributes(subjectAttributes(gamestats.SubjectPlayer, playerID)...)

	snapshot, err := h.statsService.GetPlayerStats(ctx, playerID)
	if err != nil {
		h.logger.DebugContext(ctx, "get player stats failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, snapshotToDTO(snapshot))
}

func (h *Handler) GetTeamStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTeamStats")
	defer span.End()

	teamID, err := parseSubjectID(r.PathValue("teamID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	span.SetAttributes(subjectAttributes(gamestats.SubjectTeam, teamID)...)

	snapshot, err := h.statsService.GetTeamStats(ctx, teamID)
	if err != nil {
		h.logger.DebugContext(ctx, "get team stats failed", "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, snapshotToDTO(snapshot))
}

func parseSubjectID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: id must be a positive integer, got %q", usecase.ErrInvalidInput, raw)
	}
	return id, nil
}

// Counters are pointers so a missing field is told apart from zero. Ranges
// are checked by the domain rules.
type logGameStatsRequest struct {
	PlayerID      int64    `json:"playerId"`
	TeamID        int64    `json:"teamId"`
	GameID        int64    `json:"gameId"`
	Points        *int     `json:"points" validate:"required"`
	Rebounds      *int     `json:"rebounds" validate:"required"`
	Assists       *int     `json:"assists" validate:"required"`
	Steals        *int     `json:"steals" validate:"required"`
	Blocks        *int     `json:"blocks" validate:"required"`
	Fouls         *int     `json:"fouls" validate:"required"`
	Turnovers     *int     `json:"turnovers" validate:"required"`
	MinutesPlayed *float64 `json:"minutesPlayed" validate:"required"`
}

func (r logGameStatsRequest) toDomain() gamestats.StatLine {
	return gamestats.StatLine{
		PlayerID:      r.PlayerID,
		TeamID:        r.TeamID,
		GameID:        r.GameID,
		Points:        *r.Points,
		Rebounds:      *r.Rebounds,
		Assists:       *r.Assists,
		Steals:        *r.Steals,
		Blocks:        *r.Blocks,
		Fouls:         *r.Fouls,
		Turnovers:     *r.Turnovers,
		MinutesPlayed: *r.MinutesPlayed,
	}
}

type snapshotDTO struct {
	SubjectKind      string  `json:"subjectKind"`
	SubjectID        int64   `json:"subjectId"`
	AvgPoints        float64 `json:"avgPoints"`
	AvgRebounds      float64 `json:"avgRebounds"`
	AvgAssists       float64 `json:"avgAssists"`
	AvgSteals        float64 `json:"avgSteals"`
	AvgBlocks        float64 `json:"avgBlocks"`
	AvgFouls         float64 `json:"avgFouls"`
	AvgTurnovers     float64 `json:"avgTurnovers"`
	AvgMinutesPlayed float64 `json:"avgMinutesPlayed"`
	Games            int64   `json:"games"`
	Version          int64   `json:"version"`
}

type writeResultDTO struct {
	PlayerID   int64       `json:"playerId"`
	TeamID     int64       `json:"teamId"`
	GameID     int64       `json:"gameId"`
	Cache      string      `json:"cache"`
	CacheError string      `json:"cacheError,omitempty"`
	Player     snapshotDTO `json:"player"`
	Team       snapshotDTO `json:"team"`
}

func snapshotToDTO(v gamestats.Snapshot) snapshotDTO {
	return snapshotDTO{
		SubjectKind:      string(v.Kind),
		SubjectID:        v.SubjectID,
		AvgPoints:        v.AvgPoints,
		AvgRebounds:      v.AvgRebounds,
		AvgAssists:       v.AvgAssists,
		AvgSteals:        v.AvgSteals,
		AvgBlocks:        v.AvgBlocks,
		AvgFouls:         v.AvgFouls,
		AvgTurnovers:     v.AvgTurnovers,
		AvgMinutesPlayed: v.AvgMinutesPlayed,
		Games:            v.Games,
		Version:          v.Version,
	}
}

func writeResultToDTO(v usecase.WriteResult) writeResultDTO {
	out := writeResultDTO{
		PlayerID: v.Pair.PlayerID,
		TeamID:   v.Pair.TeamID,
		GameID:   v.GameID,
		Cache:    string(v.Cache),
		Player:   snapshotToDTO(v.Player),
		Team:     snapshotToDTO(v.Team),
	}
	if v.CacheErr != nil {
		out.CacheError = v.CacheErr.Error()
	}
	return out
}
