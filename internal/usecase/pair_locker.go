package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/domain/statcache"
	"github.com/riskibarqy/courtstats/internal/platform/lock"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/platform/metrics"
)

const (
	lockCallerWrite   = "write"
	lockCallerRefresh = "refresh"
)

// PairLocker serializes every cache mutation for one (player, team) pair.
// The write path and the refresher share it.
type PairLocker struct {
	coordinator *lock.Coordinator
	metrics     *metrics.Recorder
	logger      *logging.Logger
}

func NewPairLocker(coordinator *lock.Coordinator, recorder *metrics.Recorder, logger *logging.Logger) *PairLocker {
	if logger == nil {
		logger = logging.Default()
	}
	return &PairLocker{
		coordinator: coordinator,
		metrics:     recorder,
		logger:      logger,
	}
}

func (l *PairLocker) Acquire(ctx context.Context, caller string, pair gamestats.Pair) (*lock.Lease, error) {
	started := time.Now()
	lease, err := l.coordinator.Acquire(ctx,
		statcache.LockKey(gamestats.SubjectPlayer, pair.PlayerID),
		statcache.LockKey(gamestats.SubjectTeam, pair.TeamID),
	)
	waited := time.Since(started)

	switch {
	case err == nil:
		l.metrics.LockWait(caller, "acquired", waited)
		return lease, nil
	case errors.Is(err, lock.ErrTimeout):
		l.metrics.LockWait(caller, "timeout", waited)
		return nil, fmt.Errorf("%w: player=%d team=%d: %w", ErrLockTimeout, pair.PlayerID, pair.TeamID, err)
	default:
		l.metrics.LockWait(caller, "error", waited)
		return nil, fmt.Errorf("%w: acquire pair lock player=%d team=%d: %w", ErrDependencyUnavailable, pair.PlayerID, pair.TeamID, err)
	}
}

// Release never fails the caller. Lost ownership is counted and logged.
func (l *PairLocker) Release(ctx context.Context, lease *lock.Lease) {
	if lease == nil {
		return
	}
	err := l.coordinator.Release(ctx, lease)
	if err == nil {
		return
	}
	if errors.Is(err, lock.ErrNotOwner) {
		l.metrics.LockReleaseAnomaly()
	}
	l.logger.WarnContext(ctx, "pair lock release incomplete", "keys", lease.Keys, "error", err)
}

// Expired reports whether the lease ran out while the caller still worked.
func (l *PairLocker) Expired(lease *lock.Lease) bool {
	return lease.Expired(time.Now())
}
