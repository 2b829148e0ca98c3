package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/sourcegraph/conc/pool"
)

type pairSnapshots struct {
	player      gamestats.Snapshot
	team        gamestats.Snapshot
	playerFound bool
	teamFound   bool
}

// recomputePair reads both aggregates concurrently. The first failure cancels
// the sibling read.
func recomputePair(ctx context.Context, repo gamestats.Repository, pair gamestats.Pair) (pairSnapshots, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.recomputePair", pairAttributes(pair.PlayerID, pair.TeamID)...)
	defer span.End()

	var out pairSnapshots
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		snapshot, found, err := repo.AggregateBy(ctx, gamestats.SubjectPlayer, pair.PlayerID)
		if err != nil {
			return fmt.Errorf("aggregate player=%d: %w", pair.PlayerID, err)
		}
		out.player, out.playerFound = snapshot, found
		return nil
	})
	p.Go(func(ctx context.Context) error {
		snapshot, found, err := repo.AggregateBy(ctx, gamestats.SubjectTeam, pair.TeamID)
		if err != nil {
			return fmt.Errorf("aggregate team=%d: %w", pair.TeamID, err)
		}
		out.team, out.teamFound = snapshot, found
		return nil
	})
	if err := p.Wait(); err != nil {
		return pairSnapshots{}, err
	}
	return out, nil
}
