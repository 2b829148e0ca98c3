package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/domain/statcache"
)

// StatsCache stores encoded snapshots in the shared cache. Every store error
// is returned wrapped in ErrCacheUnavailable.
type StatsCache struct {
	store statcache.Store
	ttl   time.Duration
}

func NewStatsCache(store statcache.Store, ttl time.Duration) *StatsCache {
	return &StatsCache{store: store, ttl: ttl}
}

func (c *StatsCache) Get(ctx context.Context, kind gamestats.SubjectKind, subjectID int64) (gamestats.Snapshot, bool, error) {
	key := statcache.StatsKey(kind, subjectID)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return gamestats.Snapshot{}, false, fmt.Errorf("%w: get %s: %w", ErrCacheUnavailable, key, err)
	}
	if !ok {
		return gamestats.Snapshot{}, false, nil
	}

	snapshot, err := DecodeSnapshot(raw)
	if err != nil {
		return gamestats.Snapshot{}, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return snapshot, true, nil
}

func (c *StatsCache) Put(ctx context.Context, snapshot gamestats.Snapshot) error {
	raw, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	key := statcache.StatsKey(snapshot.Kind, snapshot.SubjectID)
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrCacheUnavailable, key, err)
	}
	return nil
}

func (c *StatsCache) Remove(ctx context.Context, kind gamestats.SubjectKind, subjectID int64) error {
	key := statcache.StatsKey(kind, subjectID)
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrCacheUnavailable, key, err)
	}
	return nil
}

// ReplacePair invalidates and rewrites both entries of a pair in one
// transaction, so readers never see one new and one old snapshot.
func (c *StatsCache) ReplacePair(ctx context.Context, player, team gamestats.Snapshot) error {
	playerRaw, err := EncodeSnapshot(player)
	if err != nil {
		return err
	}
	teamRaw, err := EncodeSnapshot(team)
	if err != nil {
		return err
	}

	playerKey := statcache.StatsKey(gamestats.SubjectPlayer, player.SubjectID)
	teamKey := statcache.StatsKey(gamestats.SubjectTeam, team.SubjectID)
	ops := []statcache.Op{
		statcache.DeleteOp(playerKey),
		statcache.DeleteOp(teamKey),
		statcache.SetOp(playerKey, playerRaw, c.ttl),
		statcache.SetOp(teamKey, teamRaw, c.ttl),
	}
	if err := c.store.Transact(ctx, ops); err != nil {
		return fmt.Errorf("%w: replace %s %s: %w", ErrCacheUnavailable, playerKey, teamKey, err)
	}
	return nil
}

// InvalidatePair deletes both entries of a pair. A miss is always safe to
// leave behind; readers report it as not found.
func (c *StatsCache) InvalidatePair(ctx context.Context, pair gamestats.Pair) error {
	keys := statcache.PairStatsKeys(pair)
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: invalidate %v: %w", ErrCacheUnavailable, keys, err)
	}
	return nil
}
