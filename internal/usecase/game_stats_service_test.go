package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/domain/statcache"
	"github.com/riskibarqy/courtstats/internal/infrastructure/cache/memcache"
	"github.com/riskibarqy/courtstats/internal/infrastructure/repository/memory"
	gamestatsmock "github.com/riskibarqy/courtstats/internal/mocks/domain/gamestats"
	statcachemock "github.com/riskibarqy/courtstats/internal/mocks/domain/statcache"
	"github.com/riskibarqy/courtstats/internal/platform/id"
	"github.com/riskibarqy/courtstats/internal/platform/lock"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/stretchr/testify/mock"
)

type cacheStore interface {
	statcache.Store
	lock.Substrate
}

func newTestLocker(substrate lock.Substrate, maxWait time.Duration) *PairLocker {
	coordinator := lock.NewCoordinator(substrate, id.NewUUIDGenerator(), lock.Config{
		Lease:          5 * time.Second,
		MaxWait:        maxWait,
		InitialBackoff: 2 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, logging.NewNop())
	return NewPairLocker(coordinator, nil, logging.NewNop())
}

func newTestService(repo gamestats.Repository, store cacheStore, repair CacheRepairScheduler) *GameStatsService {
	return NewGameStatsService(
		repo,
		NewStatsCache(store, 0),
		newTestLocker(store, 200*time.Millisecond),
		repair,
		nil,
		logging.NewNop(),
	)
}

func statLine(playerID, teamID, gameID int64, points int) gamestats.StatLine {
	return gamestats.StatLine{
		PlayerID:      playerID,
		TeamID:        teamID,
		GameID:        gameID,
		Points:        points,
		Rebounds:      7,
		Assists:       8,
		Steals:        1,
		Blocks:        1,
		Fouls:         2,
		Turnovers:     3,
		MinutesPlayed: 35.5,
	}
}

type recordingRepair struct {
	mu    sync.Mutex
	pairs []gamestats.Pair
}

func (r *recordingRepair) ScheduleRefresh(_ context.Context, pair gamestats.Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = append(r.pairs, pair)
	return nil
}

type failingTransactStore struct {
	*memcache.Store
}

func (s failingTransactStore) Transact(context.Context, []statcache.Op) error {
	return errors.New("EXECABORT transaction discarded")
}

func TestGameStatsService_LogGameStats_AveragesPoints(t *testing.T) {
	t.Parallel()

	store := memcache.NewStore()
	svc := newTestService(memory.NewGameStatsRepository(nil), store, nil)
	ctx := t.Context()

	if _, err := svc.LogGameStats(ctx, statLine(23, 14, 1, 18)); err != nil {
		t.Fatalf("first write: %v", err)
	}
	result, err := svc.LogGameStats(ctx, statLine(23, 14, 2, 22))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if result.Cache != CacheCommitted || result.CacheErr != nil {
		t.Fatalf("unexpected cache outcome got=%s err=%v", result.Cache, result.CacheErr)
	}

	player, err := svc.GetPlayerStats(ctx, 23)
	if err != nil {
		t.Fatalf("get player stats: %v", err)
	}
	if player.AvgPoints != 20.0 {
		t.Fatalf("unexpected avg points got=%v want=20", player.AvgPoints)
	}
	if player.Games != 2 || player.Version != 2 {
		t.Fatalf("unexpected games/version got=%d/%d want=2/2", player.Games, player.Version)
	}

	team, err := svc.GetTeamStats(ctx, 14)
	if err != nil {
		t.Fatalf("get team stats: %v", err)
	}
	if team.AvgPoints != 20.0 || team.AvgMinutesPlayed != 35.5 {
		t.Fatalf("unexpected team snapshot: %+v", team)
	}
}

func TestGameStatsService_LogGameStats_RejectsTooManyFoulsWithoutSideEffects(t *testing.T) {
	t.Parallel()

	repo := gamestatsmock.NewRepository(t)
	store := statcachemock.NewStore(t)
	svc := newTestService(repo, store, nil)

	var states []WriteState
	svc.observe = func(state WriteState) { states = append(states, state) }

	line := statLine(23, 14, 1, 30)
	line.Fouls = 7
	_, err := svc.LogGameStats(t.Context(), line)
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, gamestats.ErrTooManyFouls) {
		t.Fatalf("expected invalid input for fouls, got=%v", err)
	}

	want := []WriteState{WriteStateValidating, WriteStateAborted}
	if !slices.Equal(states, want) {
		t.Fatalf("unexpected states got=%v want=%v", states, want)
	}
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SetIfAbsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGameStatsService_LogGameStats_TransactionFailureDeletesBothEntries(t *testing.T) {
	t.Parallel()

	base := memcache.NewStore()
	store := failingTransactStore{Store: base}
	repair := &recordingRepair{}
	svc := newTestService(memory.NewGameStatsRepository(nil), store, repair)
	ctx := t.Context()

	stale := NewStatsCache(base, 0)
	for _, snapshot := range []gamestats.Snapshot{
		{Kind: gamestats.SubjectPlayer, SubjectID: 23, AvgPoints: 1, Games: 1, Version: 1},
		{Kind: gamestats.SubjectTeam, SubjectID: 14, AvgPoints: 1, Games: 1, Version: 1},
	} {
		if err := stale.Put(ctx, snapshot); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
	}

	result, err := svc.LogGameStats(ctx, statLine(23, 14, 1, 25))
	if err != nil {
		t.Fatalf("write must succeed when cache commit fails: %v", err)
	}
	if result.Cache != CacheInvalidated {
		t.Fatalf("unexpected cache outcome got=%s want=%s", result.Cache, CacheInvalidated)
	}
	if result.CacheErr == nil {
		t.Fatalf("expected cache error to be reported")
	}
	if result.Player.AvgPoints != 25 {
		t.Fatalf("unexpected recomputed player snapshot: %+v", result.Player)
	}

	for _, key := range statcache.PairStatsKeys(gamestats.Pair{PlayerID: 23, TeamID: 14}) {
		if _, ok, _ := base.Get(ctx, key); ok {
			t.Fatalf("expected %s to be deleted", key)
		}
	}
	if _, err := svc.GetPlayerStats(ctx, 23); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after invalidation, got=%v", err)
	}
	if len(repair.pairs) != 1 || repair.pairs[0] != (gamestats.Pair{PlayerID: 23, TeamID: 14}) {
		t.Fatalf("unexpected repair requests: %v", repair.pairs)
	}
}

type deadlineTransactStore struct {
	*memcache.Store
}

func (s deadlineTransactStore) Transact(ctx context.Context, _ []statcache.Op) error {
	<-ctx.Done()
	return ctx.Err()
}

type contextRecordingRepair struct {
	mu   sync.Mutex
	errs []error
}

func (r *contextRecordingRepair) ScheduleRefresh(ctx context.Context, _ gamestats.Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, ctx.Err())
	return ctx.Err()
}

func TestGameStatsService_LogGameStats_RepairOutlivesRequestDeadline(t *testing.T) {
	t.Parallel()

	base := memcache.NewStore()
	repair := &contextRecordingRepair{}
	svc := newTestService(memory.NewGameStatsRepository(nil), deadlineTransactStore{Store: base}, repair)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	result, err := svc.LogGameStats(ctx, statLine(23, 14, 1, 25))
	if err != nil {
		t.Fatalf("write must succeed when cache commit times out: %v", err)
	}
	if result.Cache != CacheInvalidated {
		t.Fatalf("unexpected cache outcome got=%s want=%s", result.Cache, CacheInvalidated)
	}
	if !errors.Is(result.CacheErr, context.DeadlineExceeded) {
		t.Fatalf("expected deadline in cache error, got=%v", result.CacheErr)
	}

	repair.mu.Lock()
	defer repair.mu.Unlock()
	if len(repair.errs) != 1 {
		t.Fatalf("unexpected repair count got=%d want=1", len(repair.errs))
	}
	if repair.errs[0] != nil {
		t.Fatalf("repair scheduled with a dead context: %v", repair.errs[0])
	}
}

func TestGameStatsService_LogGameStats_LockHeldElsewhere(t *testing.T) {
	t.Parallel()

	repo := gamestatsmock.NewRepository(t)
	store := memcache.NewStore()
	svc := newTestService(repo, store, nil)
	ctx := t.Context()

	held, err := store.SetIfAbsent(ctx, statcache.LockKey(gamestats.SubjectPlayer, 23), []byte("foreign"), time.Minute)
	if err != nil || !held {
		t.Fatalf("seed foreign lock: held=%v err=%v", held, err)
	}

	_, err = svc.LogGameStats(ctx, statLine(23, 14, 1, 10))
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got=%v", err)
	}
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)

	// Failed attempts leave no key behind.
	if _, ok, _ := store.Get(ctx, statcache.LockKey(gamestats.SubjectTeam, 14)); ok {
		t.Fatalf("team lock key left behind after timeout")
	}
}

func TestGameStatsService_LogGameStats_HoldsLockFromInsertToCommit(t *testing.T) {
	t.Parallel()

	repo := gamestatsmock.NewRepository(t)
	store := memcache.NewStore()
	svc := newTestService(repo, store, nil)
	ctx := t.Context()

	lockKeys := []string{
		statcache.LockKey(gamestats.SubjectPlayer, 23),
		statcache.LockKey(gamestats.SubjectTeam, 14),
	}
	assertLocked := func(stage string) {
		for _, key := range lockKeys {
			if _, ok, _ := store.Get(context.Background(), key); !ok {
				t.Errorf("%s: lock key %s not held", stage, key)
			}
		}
	}

	line := statLine(23, 14, 9, 31)
	repo.On("Insert", mock.Anything, line).
		Run(func(mock.Arguments) { assertLocked("insert") }).
		Return(int64(1), nil).
		Once()
	repo.On("AggregateBy", mock.Anything, gamestats.SubjectPlayer, int64(23)).
		Run(func(mock.Arguments) { assertLocked("aggregate player") }).
		Return(gamestats.Snapshot{Kind: gamestats.SubjectPlayer, SubjectID: 23, AvgPoints: 31, Games: 1, Version: 5}, true, nil).
		Once()
	repo.On("AggregateBy", mock.Anything, gamestats.SubjectTeam, int64(14)).
		Return(gamestats.Snapshot{Kind: gamestats.SubjectTeam, SubjectID: 14, AvgPoints: 31, Games: 1, Version: 5}, true, nil).
		Once()

	var states []WriteState
	svc.observe = func(state WriteState) {
		if state == WriteStateCacheCommitting {
			assertLocked("commit")
		}
		states = append(states, state)
	}

	result, err := svc.LogGameStats(ctx, line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cache != CacheCommitted {
		t.Fatalf("unexpected cache outcome got=%s", result.Cache)
	}

	want := []WriteState{
		WriteStateValidating,
		WriteStateLockAcquiring,
		WriteStatePersisting,
		WriteStateRecomputing,
		WriteStateCacheCommitting,
		WriteStateLockReleasing,
		WriteStateDone,
	}
	if !slices.Equal(states, want) {
		t.Fatalf("unexpected states got=%v want=%v", states, want)
	}
	for _, key := range lockKeys {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Fatalf("lock key %s not released", key)
		}
	}
}

func TestGameStatsService_LogGameStats_PersistenceFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows int64
		err  error
	}{
		{name: "insert error", err: errors.New("connection reset")},
		{name: "zero rows", rows: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := gamestatsmock.NewRepository(t)
			store := memcache.NewStore()
			svc := newTestService(repo, store, nil)

			line := statLine(30, 10, 3, 40)
			repo.On("Insert", mock.Anything, line).Return(tc.rows, tc.err).Once()

			var states []WriteState
			svc.observe = func(state WriteState) { states = append(states, state) }

			_, err := svc.LogGameStats(t.Context(), line)
			if !errors.Is(err, ErrPersistence) {
				t.Fatalf("expected persistence error, got=%v", err)
			}
			if store.Len() != 0 {
				t.Fatalf("expected no cache or lock entries left, got=%d", store.Len())
			}
			if states[len(states)-1] != WriteStateAborted {
				t.Fatalf("expected aborted final state, got=%v", states)
			}
			if !slices.Contains(states, WriteStateLockReleasing) {
				t.Fatalf("lock was not released, states=%v", states)
			}
		})
	}
}

func TestGameStatsService_LogGameStats_RecomputeFailureInvalidatesPair(t *testing.T) {
	t.Parallel()

	repo := gamestatsmock.NewRepository(t)
	store := memcache.NewStore()
	svc := newTestService(repo, store, nil)
	ctx := t.Context()

	cache := NewStatsCache(store, 0)
	if err := cache.Put(ctx, gamestats.Snapshot{Kind: gamestats.SubjectPlayer, SubjectID: 30, Games: 1, Version: 1}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	line := statLine(30, 10, 3, 40)
	repo.On("Insert", mock.Anything, line).Return(int64(1), nil).Once()
	repo.On("AggregateBy", mock.Anything, gamestats.SubjectPlayer, int64(30)).
		Return(gamestats.Snapshot{}, false, errors.New("statement timeout")).
		Maybe()
	repo.On("AggregateBy", mock.Anything, gamestats.SubjectTeam, int64(10)).
		Return(gamestats.Snapshot{Kind: gamestats.SubjectTeam, SubjectID: 10, Games: 1, Version: 2}, true, nil).
		Maybe()

	_, err := svc.LogGameStats(ctx, line)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got=%v", err)
	}
	if _, ok, _ := cache.Get(ctx, gamestats.SubjectPlayer, 30); ok {
		t.Fatalf("expected player entry to be invalidated")
	}
}

type overlapRepo struct {
	gamestats.Repository
	active    atomic.Int32
	maxActive atomic.Int32
}

func (r *overlapRepo) Insert(ctx context.Context, line gamestats.StatLine) (int64, error) {
	now := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		prev := r.maxActive.Load()
		if now <= prev || r.maxActive.CompareAndSwap(prev, now) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return r.Repository.Insert(ctx, line)
}

func TestGameStatsService_LogGameStats_SerializesSamePair(t *testing.T) {
	t.Parallel()

	repo := &overlapRepo{Repository: memory.NewGameStatsRepository(nil)}
	store := memcache.NewStore()
	svc := NewGameStatsService(repo, NewStatsCache(store, 0), newTestLocker(store, 5*time.Second), nil, nil, logging.NewNop())
	ctx := t.Context()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LogGameStats(ctx, statLine(3, 14, int64(i+1), 10+i))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	}
	if got := repo.maxActive.Load(); got != 1 {
		t.Fatalf("same pair writes overlapped got=%d want=1", got)
	}

	player, err := svc.GetPlayerStats(ctx, 3)
	if err != nil {
		t.Fatalf("get player stats: %v", err)
	}
	if player.Games != writers || player.Version != writers {
		t.Fatalf("cache does not reflect every write got games=%d version=%d", player.Games, player.Version)
	}
}

type rendezvousRepo struct {
	gamestats.Repository
	arrived sync.WaitGroup
}

func (r *rendezvousRepo) Insert(ctx context.Context, line gamestats.StatLine) (int64, error) {
	r.arrived.Done()
	met := make(chan struct{})
	go func() {
		r.arrived.Wait()
		close(met)
	}()
	select {
	case <-met:
	case <-time.After(2 * time.Second):
		return 0, errors.New("inserts for disjoint pairs did not overlap")
	}
	return r.Repository.Insert(ctx, line)
}

func TestGameStatsService_LogGameStats_DisjointPairsRunInParallel(t *testing.T) {
	t.Parallel()

	repo := &rendezvousRepo{Repository: memory.NewGameStatsRepository(nil)}
	repo.arrived.Add(2)
	store := memcache.NewStore()
	svc := NewGameStatsService(repo, NewStatsCache(store, 0), newTestLocker(store, 5*time.Second), nil, nil, logging.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, line := range []gamestats.StatLine{statLine(23, 14, 1, 20), statLine(30, 10, 1, 30)} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LogGameStats(t.Context(), line)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	}
}

func TestGameStatsService_GetStats(t *testing.T) {
	t.Parallel()

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(gamestatsmock.NewRepository(t), statcachemock.NewStore(t), nil)
		if _, err := svc.GetPlayerStats(t.Context(), 0); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input, got=%v", err)
		}
	})

	t.Run("miss is not found", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(gamestatsmock.NewRepository(t), memcache.NewStore(), nil)
		if _, err := svc.GetTeamStats(t.Context(), 14); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got=%v", err)
		}
	})

	t.Run("cache outage", func(t *testing.T) {
		t.Parallel()
		store := statcachemock.NewStore(t)
		store.On("Get", mock.Anything, statcache.StatsKey(gamestats.SubjectPlayer, 23)).
			Return(nil, false, statcache.ErrUnavailable).
			Once()
		svc := newTestService(gamestatsmock.NewRepository(t), store, nil)

		_, err := svc.GetPlayerStats(t.Context(), 23)
		if !errors.Is(err, ErrDependencyUnavailable) || !errors.Is(err, statcache.ErrUnavailable) {
			t.Fatalf("expected dependency unavailable, got=%v", err)
		}
	})
}
