package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/platform/metrics"
	"github.com/riskibarqy/courtstats/internal/platform/resilience"
)

const (
	warmupFlightKey         = "warm-cache"
	defaultWarmupMaxWorkers = 4
	warmupSource            = "warmup"
	warmupRunTimeout        = 5 * time.Minute
)

type WarmupResult struct {
	PairCount    int   `json:"pair_count"`
	SuccessCount int   `json:"success_count"`
	FailedCount  int   `json:"failed_count"`
	WorkerCount  int   `json:"worker_count"`
	DurationMs   int64 `json:"duration_ms"`
	Shared       bool  `json:"shared"`
}

// CacheWarmupService refreshes every known pair. Concurrent triggers share a
// single run.
type CacheWarmupService struct {
	repo       gamestats.Repository
	refresher  *CacheRefresher
	maxWorkers int
	flight     resilience.SingleFlight[WarmupResult]
	metrics    *metrics.Recorder
	logger     *logging.Logger
}

func NewCacheWarmupService(
	repo gamestats.Repository,
	refresher *CacheRefresher,
	maxWorkers int,
	recorder *metrics.Recorder,
	logger *logging.Logger,
) *CacheWarmupService {
	if maxWorkers <= 0 {
		maxWorkers = defaultWarmupMaxWorkers
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CacheWarmupService{
		repo:       repo,
		refresher:  refresher,
		maxWorkers: maxWorkers,
		metrics:    recorder,
		logger:     logger,
	}
}

func (s *CacheWarmupService) WarmAll(ctx context.Context) (WarmupResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CacheWarmupService.WarmAll")
	defer span.End()

	result, err, shared := s.flight.Do(warmupFlightKey, func() (WarmupResult, error) {
		// Joined callers share this run, so it must not end with the caller
		// that happened to start it.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), warmupRunTimeout)
		defer cancel()
		return s.warmAll(runCtx)
	})
	result.Shared = shared
	return result, err
}

func (s *CacheWarmupService) warmAll(ctx context.Context) (WarmupResult, error) {
	start := time.Now()
	pairs, err := s.repo.ListPairs(ctx)
	if err != nil {
		return WarmupResult{}, fmt.Errorf("%w: list pairs: %w", ErrPersistence, err)
	}

	result := WarmupResult{
		PairCount:   len(pairs),
		WorkerCount: normalizeWarmupWorkerCount(s.maxWorkers, len(pairs)),
	}
	if len(pairs) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(result.WorkerCount)
	if err != nil {
		return WarmupResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var successCount atomic.Int32
	var failedCount atomic.Int32

	var workers sync.WaitGroup
	for _, pair := range pairs {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			notification := Notification{PlayerID: pair.PlayerID, TeamID: pair.TeamID}
			if err := s.refresher.Handle(ctx, warmupSource, notification); err != nil {
				failedCount.Add(1)
				return
			}
			successCount.Add(1)
		}); err != nil {
			workers.Done()
			workers.Wait()
			return WarmupResult{}, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	result.SuccessCount = int(successCount.Load())
	result.FailedCount = int(failedCount.Load())
	result.DurationMs = time.Since(start).Milliseconds()

	s.metrics.WarmupPairs("ok", result.SuccessCount)
	s.metrics.WarmupPairs("failed", result.FailedCount)
	s.logger.InfoContext(ctx, "cache warm-up finished",
		"pairs", result.PairCount,
		"success", result.SuccessCount,
		"failed", result.FailedCount,
		"workers", result.WorkerCount,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func normalizeWarmupWorkerCount(value, taskCount int) int {
	if taskCount <= 0 {
		return 1
	}
	if value <= 0 {
		value = 1
	}
	if value > taskCount {
		value = taskCount
	}
	return value
}
