package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/platform/metrics"
)

const defaultNotificationTimeout = 10 * time.Second

// Notification asks for both snapshots of a pair to be rebuilt from the store.
type Notification struct {
	PlayerID int64
	TeamID   int64
}

func (n Notification) Pair() gamestats.Pair {
	return gamestats.Pair{PlayerID: n.PlayerID, TeamID: n.TeamID}
}

// CacheRefresher rebuilds cache entries outside the write path. It takes the
// same pair lock as writers and never replaces a cached snapshot with an
// older version.
type CacheRefresher struct {
	repo    gamestats.Repository
	cache   *StatsCache
	locker  *PairLocker
	timeout time.Duration
	metrics *metrics.Recorder
	logger  *logging.Logger
}

func NewCacheRefresher(
	repo gamestats.Repository,
	cache *StatsCache,
	locker *PairLocker,
	timeout time.Duration,
	recorder *metrics.Recorder,
	logger *logging.Logger,
) *CacheRefresher {
	if timeout <= 0 {
		timeout = defaultNotificationTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CacheRefresher{
		repo:    repo,
		cache:   cache,
		locker:  locker,
		timeout: timeout,
		metrics: recorder,
		logger:  logger,
	}
}

// Handle processes one notification. source labels metrics and logs
// ("kafka", "qstash", "warmup").
func (r *CacheRefresher) Handle(ctx context.Context, source string, notification Notification) error {
	err := r.Refresh(ctx, notification.Pair())
	if err != nil {
		r.metrics.Notification(source, "failed")
		r.logger.WarnContext(ctx, "cache refresh failed",
			"source", source,
			"player_id", notification.PlayerID,
			"team_id", notification.TeamID,
			"error", err,
		)
		return err
	}
	r.metrics.Notification(source, "ok")
	return nil
}

// Refresh recomputes both snapshots of the pair and stores them. Running it
// twice without an intervening write leaves the cache unchanged.
func (r *CacheRefresher) Refresh(ctx context.Context, pair gamestats.Pair) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.CacheRefresher.Refresh", pairAttributes(pair.PlayerID, pair.TeamID)...)
	defer span.End()

	if err := pair.Validate(); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrNotificationProcessing, ErrInvalidInput, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lease, err := r.locker.Acquire(ctx, lockCallerRefresh, pair)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationProcessing, err)
	}
	defer r.locker.Release(ctx, lease)

	snapshots, err := recomputePair(ctx, r.repo, pair)
	if err != nil {
		return fmt.Errorf("%w: %w: recompute player=%d team=%d: %w", ErrNotificationProcessing, ErrPersistence, pair.PlayerID, pair.TeamID, err)
	}

	if err := r.apply(ctx, gamestats.SubjectPlayer, pair.PlayerID, snapshots.player, snapshots.playerFound); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationProcessing, err)
	}
	if err := r.apply(ctx, gamestats.SubjectTeam, pair.TeamID, snapshots.team, snapshots.teamFound); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationProcessing, err)
	}
	return nil
}

func (r *CacheRefresher) apply(ctx context.Context, kind gamestats.SubjectKind, subjectID int64, snapshot gamestats.Snapshot, found bool) error {
	if !found {
		return r.cache.Remove(ctx, kind, subjectID)
	}

	cached, ok, err := r.cache.Get(ctx, kind, subjectID)
	if err != nil {
		r.logger.DebugContext(ctx, "cached snapshot unreadable, overwriting",
			"subject", kind,
			"subject_id", subjectID,
			"error", err,
		)
	}
	if err == nil && ok && cached.Version > snapshot.Version {
		r.metrics.RefreshSkipped(string(kind))
		r.logger.InfoContext(ctx, "cached snapshot is newer, refresh skipped",
			"subject", kind,
			"subject_id", subjectID,
			"cached_version", cached.Version,
			"recomputed_version", snapshot.Version,
		)
		return nil
	}
	return r.cache.Put(ctx, snapshot)
}
