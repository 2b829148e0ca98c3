package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	qb "github.com/riskibarqy/courtstats/internal/platform/querybuilder"
)

var aggregateColumns = []string{
	"COUNT(1) AS games",
	"COALESCE(MAX(id), 0) AS version",
	"COALESCE(AVG(points)::float8, 0) AS avg_points",
	"COALESCE(AVG(rebounds)::float8, 0) AS avg_rebounds",
	"COALESCE(AVG(assists)::float8, 0) AS avg_assists",
	"COALESCE(AVG(steals)::float8, 0) AS avg_steals",
	"COALESCE(AVG(blocks)::float8, 0) AS avg_blocks",
	"COALESCE(AVG(fouls)::float8, 0) AS avg_fouls",
	"COALESCE(AVG(turnovers)::float8, 0) AS avg_turnovers",
	"COALESCE(AVG(minutes_played)::float8, 0) AS avg_minutes_played",
}

type GameStatsRepository struct {
	db *sqlx.DB
}

var _ gamestats.Repository = (*GameStatsRepository)(nil)

func NewGameStatsRepository(db *sqlx.DB) *GameStatsRepository {
	return &GameStatsRepository{db: db}
}

func (r *GameStatsRepository) Insert(ctx context.Context, line gamestats.StatLine) (int64, error) {
	query, args, err := qb.InsertModel(gameStatsTable, newGameStatInsertModel(line))
	if err != nil {
		return 0, fmt.Errorf("build insert game stats query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert game stats player=%d game=%d: %w", line.PlayerID, line.GameID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert game stats rows affected: %w", err)
	}
	return rows, nil
}

func (r *GameStatsRepository) AggregateBy(ctx context.Context, kind gamestats.SubjectKind, subjectID int64) (gamestats.Snapshot, bool, error) {
	query, args, err := buildAggregateQuery(kind, subjectID)
	if err != nil {
		return gamestats.Snapshot{}, false, err
	}

	var row aggregateRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return gamestats.Snapshot{}, false, fmt.Errorf("aggregate %s stats id=%d: %w", kind, subjectID, err)
	}
	if row.Games == 0 {
		return gamestats.Snapshot{}, false, nil
	}
	return row.toDomain(kind, subjectID), true, nil
}

func (r *GameStatsRepository) ListPairs(ctx context.Context) ([]gamestats.Pair, error) {
	cols, err := qb.ColumnsOf(pairRow{})
	if err != nil {
		return nil, fmt.Errorf("list pairs columns: %w", err)
	}
	query, args, err := qb.Select(cols...).
		Distinct().
		From(gameStatsTable).
		OrderBy("player_id", "team_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list pairs query: %w", err)
	}

	var rows []pairRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list player team pairs: %w", err)
	}

	out := make([]gamestats.Pair, 0, len(rows))
	for _, row := range rows {
		out = append(out, gamestats.Pair{PlayerID: row.PlayerID, TeamID: row.TeamID})
	}
	return out, nil
}

// buildAggregateQuery always returns one row; games is zero when the subject
// has no stat lines.
func buildAggregateQuery(kind gamestats.SubjectKind, subjectID int64) (string, []any, error) {
	var column string
	switch kind {
	case gamestats.SubjectPlayer:
		column = "player_id"
	case gamestats.SubjectTeam:
		column = "team_id"
	default:
		return "", nil, fmt.Errorf("aggregate: unknown subject kind %q", kind)
	}

	query, args, err := qb.Select(aggregateColumns...).
		From(gameStatsTable).
		Where(qb.Eq(column, subjectID)).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build aggregate %s query: %w", kind, err)
	}
	return query, args, nil
}
