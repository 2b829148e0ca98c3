package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/platform/lock"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/platform/metrics"
)

// WriteState is a step of the stat line write path.
type WriteState string

const (
	WriteStateValidating      WriteState = "validating"
	WriteStateLockAcquiring   WriteState = "lock_acquiring"
	WriteStatePersisting      WriteState = "persisting"
	WriteStateRecomputing     WriteState = "recomputing"
	WriteStateCacheCommitting WriteState = "cache_committing"
	WriteStateLockReleasing   WriteState = "lock_releasing"
	WriteStateDone            WriteState = "done"
	WriteStateAborted         WriteState = "aborted"
)

// CacheOutcome tells what a successful write left in the cache.
type CacheOutcome string

const (
	// CacheCommitted: both entries hold the recomputed snapshots.
	CacheCommitted CacheOutcome = "committed"
	// CacheInvalidated: the transaction failed and both entries were deleted.
	CacheInvalidated CacheOutcome = "invalidated"
	// CacheStale: neither the transaction nor the fallback delete succeeded.
	CacheStale CacheOutcome = "stale"
)

const cacheCleanupTimeout = 2 * time.Second

var errLeaseExpired = errors.New("pair lock lease expired before cache commit")

type WriteResult struct {
	Pair     gamestats.Pair
	GameID   int64
	Player   gamestats.Snapshot
	Team     gamestats.Snapshot
	Cache    CacheOutcome
	CacheErr error
}

// CacheRepairScheduler queues a later refresh for a pair whose cache entries
// had to be dropped.
type CacheRepairScheduler interface {
	ScheduleRefresh(ctx context.Context, pair gamestats.Pair) error
}

type GameStatsService struct {
	repo    gamestats.Repository
	cache   *StatsCache
	locker  *PairLocker
	repair  CacheRepairScheduler
	metrics *metrics.Recorder
	logger  *logging.Logger

	observe func(WriteState)
}

func NewGameStatsService(
	repo gamestats.Repository,
	cache *StatsCache,
	locker *PairLocker,
	repair CacheRepairScheduler,
	recorder *metrics.Recorder,
	logger *logging.Logger,
) *GameStatsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &GameStatsService{
		repo:    repo,
		cache:   cache,
		locker:  locker,
		repair:  repair,
		metrics: recorder,
		logger:  logger,
	}
}

// LogGameStats persists one stat line and refreshes the player and team
// snapshots it touches. The pair lock is held from the insert until the
// cache commit. Cache trouble is reported in WriteResult.Cache and never
// fails a write that reached the store.
func (s *GameStatsService) LogGameStats(ctx context.Context, line gamestats.StatLine) (result WriteResult, err error) {
	pair := line.Pair()
	ctx, span := startUsecaseSpan(ctx, "usecase.GameStatsService.LogGameStats", pairAttributes(pair.PlayerID, pair.TeamID)...)
	defer span.End()

	defer func() {
		if err != nil {
			s.enter(ctx, pair, WriteStateAborted)
			s.metrics.Write(writeOutcome(err))
			return
		}
		s.metrics.Write("ok")
	}()

	s.enter(ctx, pair, WriteStateValidating)
	if err := line.Validate(); err != nil {
		return WriteResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	s.enter(ctx, pair, WriteStateLockAcquiring)
	lease, err := s.locker.Acquire(ctx, lockCallerWrite, pair)
	if err != nil {
		return WriteResult{}, err
	}
	defer func() {
		s.enter(ctx, pair, WriteStateLockReleasing)
		s.locker.Release(ctx, lease)
		if err == nil {
			s.enter(ctx, pair, WriteStateDone)
		}
	}()

	s.enter(ctx, pair, WriteStatePersisting)
	rows, err := s.repo.Insert(ctx, line)
	if err != nil {
		return WriteResult{}, fmt.Errorf("%w: insert stat line player=%d team=%d game=%d: %w", ErrPersistence, pair.PlayerID, pair.TeamID, line.GameID, err)
	}
	if rows == 0 {
		return WriteResult{}, fmt.Errorf("%w: insert stat line player=%d team=%d game=%d affected no rows", ErrPersistence, pair.PlayerID, pair.TeamID, line.GameID)
	}

	s.enter(ctx, pair, WriteStateRecomputing)
	snapshots, err := recomputePair(ctx, s.repo, pair)
	if err == nil && (!snapshots.playerFound || !snapshots.teamFound) {
		err = fmt.Errorf("aggregate missing after insert player_found=%t team_found=%t", snapshots.playerFound, snapshots.teamFound)
	}
	if err != nil {
		// The store is now ahead of the cache; drop both entries.
		if cleanupErr := s.invalidate(ctx, pair); cleanupErr != nil {
			s.logger.ErrorContext(ctx, "cache invalidation after failed recompute failed",
				"player_id", pair.PlayerID,
				"team_id", pair.TeamID,
				"error", cleanupErr,
			)
			s.scheduleRepair(ctx, pair)
		}
		return WriteResult{}, fmt.Errorf("%w: recompute player=%d team=%d: %w", ErrPersistence, pair.PlayerID, pair.TeamID, err)
	}

	s.enter(ctx, pair, WriteStateCacheCommitting)
	result = WriteResult{
		Pair:   pair,
		GameID: line.GameID,
		Player: snapshots.player,
		Team:   snapshots.team,
	}
	result.Cache, result.CacheErr = s.commitCache(ctx, lease, pair, snapshots)
	s.metrics.CacheOutcome(string(result.Cache))
	return result, nil
}

func (s *GameStatsService) commitCache(ctx context.Context, lease *lock.Lease, pair gamestats.Pair, snapshots pairSnapshots) (CacheOutcome, error) {
	var commitErr error
	if s.locker.Expired(lease) {
		commitErr = errLeaseExpired
	} else {
		commitErr = s.cache.ReplacePair(ctx, snapshots.player, snapshots.team)
		if commitErr == nil {
			return CacheCommitted, nil
		}
	}

	s.logger.WarnContext(ctx, "cache commit failed, invalidating pair",
		"player_id", pair.PlayerID,
		"team_id", pair.TeamID,
		"error", commitErr,
	)
	defer s.scheduleRepair(ctx, pair)

	if err := s.invalidate(ctx, pair); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed, entries may be stale",
			"player_id", pair.PlayerID,
			"team_id", pair.TeamID,
			"error", err,
		)
		return CacheStale, errors.Join(commitErr, err)
	}
	return CacheInvalidated, commitErr
}

func (s *GameStatsService) invalidate(ctx context.Context, pair gamestats.Pair) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheCleanupTimeout)
	defer cancel()
	return s.cache.InvalidatePair(cleanupCtx, pair)
}

func (s *GameStatsService) scheduleRepair(ctx context.Context, pair gamestats.Pair) {
	if s.repair == nil {
		return
	}
	// The request deadline may already be spent when the commit failed.
	repairCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheCleanupTimeout)
	defer cancel()
	if err := s.repair.ScheduleRefresh(repairCtx, pair); err != nil {
		s.logger.WarnContext(ctx, "schedule cache repair failed",
			"player_id", pair.PlayerID,
			"team_id", pair.TeamID,
			"error", err,
		)
	}
}

func (s *GameStatsService) enter(ctx context.Context, pair gamestats.Pair, state WriteState) {
	s.logger.DebugContext(ctx, "write state",
		"state", state,
		"player_id", pair.PlayerID,
		"team_id", pair.TeamID,
	)
	if s.observe != nil {
		s.observe(state)
	}
}

func (s *GameStatsService) GetPlayerStats(ctx context.Context, playerID int64) (gamestats.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameStatsService.GetPlayerStats")
	defer span.End()

	return s.getStats(ctx, gamestats.SubjectPlayer, playerID)
}

func (s *GameStatsService) GetTeamStats(ctx context.Context, teamID int64) (gamestats.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameStatsService.GetTeamStats")
	defer span.End()

	return s.getStats(ctx, gamestats.SubjectTeam, teamID)
}

func (s *GameStatsService) getStats(ctx context.Context, kind gamestats.SubjectKind, subjectID int64) (gamestats.Snapshot, error) {
	if subjectID < 1 {
		return gamestats.Snapshot{}, fmt.Errorf("%w: %s id must be positive", ErrInvalidInput, kind)
	}

	snapshot, ok, err := s.cache.Get(ctx, kind, subjectID)
	if err != nil {
		return gamestats.Snapshot{}, fmt.Errorf("%w: read %s stats id=%d: %w", ErrDependencyUnavailable, kind, subjectID, err)
	}
	if !ok {
		return gamestats.Snapshot{}, fmt.Errorf("%w: %s stats id=%d", ErrNotFound, kind, subjectID)
	}
	return snapshot, nil
}

func writeOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}
