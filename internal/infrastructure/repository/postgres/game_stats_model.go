package postgres

import "github.com/riskibarqy/courtstats/internal/domain/gamestats"

const gameStatsTable = "game_stats"

type gameStatInsertModel struct {
	PlayerID      int64   `db:"player_id"`
	TeamID        int64   `db:"team_id"`
	GameID        int64   `db:"game_id"`
	Points        int     `db:"points"`
	Rebounds      int     `db:"rebounds"`
	Assists       int     `db:"assists"`
	Steals        int     `db:"steals"`
	Blocks        int     `db:"blocks"`
	Fouls         int     `db:"fouls"`
	Turnovers     int     `db:"turnovers"`
	MinutesPlayed float64 `db:"minutes_played"`
}

func newGameStatInsertModel(line gamestats.StatLine) gameStatInsertModel {
	return gameStatInsertModel{
		PlayerID:      line.PlayerID,
		TeamID:        line.TeamID,
		GameID:        line.GameID,
		Points:        line.Points,
		Rebounds:      line.Rebounds,
		Assists:       line.Assists,
		Steals:        line.Steals,
		Blocks:        line.Blocks,
		Fouls:         line.Fouls,
		Turnovers:     line.Turnovers,
		MinutesPlayed: line.MinutesPlayed,
	}
}

type aggregateRow struct {
	Games            int64   `db:"games"`
	Version          int64   `db:"version"`
	AvgPoints        float64 `db:"avg_points"`
	AvgRebounds      float64 `db:"avg_rebounds"`
	AvgAssists       float64 `db:"avg_assists"`
	AvgSteals        float64 `db:"avg_steals"`
	AvgBlocks        float64 `db:"avg_blocks"`
	AvgFouls         float64 `db:"avg_fouls"`
	AvgTurnovers     float64 `db:"avg_turnovers"`
	AvgMinutesPlayed float64 `db:"avg_minutes_played"`
}

func (r aggregateRow) toDomain(kind gamestats.SubjectKind, subjectID int64) gamestats.Snapshot {
	return gamestats.Snapshot{
		Kind:             kind,
		SubjectID:        subjectID,
		AvgPoints:        r.AvgPoints,
		AvgRebounds:      r.AvgRebounds,
		AvgAssists:       r.AvgAssists,
		AvgSteals:        r.AvgSteals,
		AvgBlocks:        r.AvgBlocks,
		AvgFouls:         r.AvgFouls,
		AvgTurnovers:     r.AvgTurnovers,
		AvgMinutesPlayed: r.AvgMinutesPlayed,
		Games:            r.Games,
		Version:          r.Version,
	}
}

type pairRow struct {
	PlayerID int64 `db:"player_id"`
	TeamID   int64 `db:"team_id"`
}
