package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
)

type storedLine struct {
	id   int64
	line gamestats.StatLine
}

// GameStatsRepository keeps stat lines in insertion order. Ids start at 1 and
// grow by one per insert, like a serial column.
type GameStatsRepository struct {
	mu     sync.RWMutex
	lines  []storedLine
	nextID int64
}

var _ gamestats.Repository = (*GameStatsRepository)(nil)

func NewGameStatsRepository(seed []gamestats.StatLine) *GameStatsRepository {
	r := &GameStatsRepository{nextID: 1}
	for _, line := range seed {
		r.appendLocked(line)
	}
	return r
}

func (r *GameStatsRepository) Insert(ctx context.Context, line gamestats.StatLine) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("insert game stats: %w", err)
	}

	r.mu.Lock()
	r.appendLocked(line)
	r.mu.Unlock()
	return 1, nil
}

func (r *GameStatsRepository) AggregateBy(ctx context.Context, kind gamestats.SubjectKind, subjectID int64) (gamestats.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return gamestats.Snapshot{}, false, fmt.Errorf("aggregate %s stats: %w", kind, err)
	}
	if !kind.Valid() {
		return gamestats.Snapshot{}, false, fmt.Errorf("aggregate: unknown subject kind %q", kind)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		sum     [8]float64
		games   int64
		version int64
	)
	for _, stored := range r.lines {
		line := stored.line
		id := line.PlayerID
		if kind == gamestats.SubjectTeam {
			id = line.TeamID
		}
		if id != subjectID {
			continue
		}
		games++
		version = max(version, stored.id)
		sum[0] += float64(line.Points)
		sum[1] += float64(line.Rebounds)
		sum[2] += float64(line.Assists)
		sum[3] += float64(line.Steals)
		sum[4] += float64(line.Blocks)
		sum[5] += float64(line.Fouls)
		sum[6] += float64(line.Turnovers)
		sum[7] += line.MinutesPlayed
	}
	if games == 0 {
		return gamestats.Snapshot{}, false, nil
	}

	n := float64(games)
	return gamestats.Snapshot{
		Kind:             kind,
		SubjectID:        subjectID,
		AvgPoints:        sum[0] / n,
		AvgRebounds:      sum[1] / n,
		AvgAssists:       sum[2] / n,
		AvgSteals:        sum[3] / n,
		AvgBlocks:        sum[4] / n,
		AvgFouls:         sum[5] / n,
		AvgTurnovers:     sum[6] / n,
		AvgMinutesPlayed: sum[7] / n,
		Games:            games,
		Version:          version,
	}, true, nil
}

func (r *GameStatsRepository) ListPairs(ctx context.Context) ([]gamestats.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list player team pairs: %w", err)
	}

	r.mu.RLock()
	seen := make(map[gamestats.Pair]struct{}, len(r.lines))
	out := make([]gamestats.Pair, 0, len(r.lines))
	for _, stored := range r.lines {
		pair := stored.line.Pair()
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b gamestats.Pair) int {
		return cmp.Or(cmp.Compare(a.PlayerID, b.PlayerID), cmp.Compare(a.TeamID, b.TeamID))
	})
	return out, nil
}

// Count returns the number of stored stat lines.
func (r *GameStatsRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lines)
}

func (r *GameStatsRepository) appendLocked(line gamestats.StatLine) {
	r.lines = append(r.lines, storedLine{id: r.nextID, line: line})
	r.nextID++
}
