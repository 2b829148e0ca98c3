package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/domain/statcache"
	"github.com/riskibarqy/courtstats/internal/infrastructure/cache/memcache"
	"github.com/riskibarqy/courtstats/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/courtstats/internal/platform/id"
	"github.com/riskibarqy/courtstats/internal/platform/lock"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/usecase"
)

const testJobToken = "job-secret"

type testAPI struct {
	router http.Handler
	store  *memcache.Store
}

func newTestAPI(t *testing.T, seed []gamestats.StatLine) testAPI {
	t.Helper()

	logger := logging.NewNop()
	repo := memory.NewGameStatsRepository(seed)
	store := memcache.NewStore()
	cache := usecase.NewStatsCache(store, 0)
	coordinator := lock.NewCoordinator(store, id.NewUUIDGenerator(), lock.Config{
		Lease:          5 * time.Second,
		MaxWait:        100 * time.Millisecond,
		InitialBackoff: 2 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, logger)
	locker := usecase.NewPairLocker(coordinator, nil, logger)

	stats := usecase.NewGameStatsService(repo, cache, locker, nil, nil, logger)
	refresher := usecase.NewCacheRefresher(repo, cache, locker, time.Second, nil, logger)
	warmup := usecase.NewCacheWarmupService(repo, refresher, 2, nil, logger)

	router := NewRouter(NewHandler(stats, refresher, warmup, logger), RouterConfig{
		SwaggerEnabled:   true,
		InternalJobToken: testJobToken,
		RequestTimeout:   2 * time.Second,
	}, logger)
	return testAPI{router: router, store: store}
}

func (a testAPI) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	APIVersion string `json:"apiVersion"`
	Data       T      `json:"data"`
	Error      *struct {
		Code   int    `json:"code"`
		Status string `json:"status"`
	} `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	if err := sonic.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	return out
}

const validStatLine = `{"playerId":1,"teamId":2,"gameId":3,"points":20,"rebounds":5,"assists":3,"steals":1,"blocks":1,"fouls":2,"turnovers":1,"minutesPlayed":35.5}`

func TestRouter_LogThenReadStats(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/v1/stats", validStatLine, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status got=%d body=%s", rec.Code, rec.Body.String())
	}
	written := decodeEnvelope[writeResultDTO](t, rec)
	if written.Data.Cache != string(usecase.CacheCommitted) {
		t.Fatalf("unexpected cache outcome got=%s", written.Data.Cache)
	}

	rec = api.do(t, http.MethodGet, "/v1/stats/players/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status got=%d body=%s", rec.Code, rec.Body.String())
	}
	player := decodeEnvelope[snapshotDTO](t, rec)
	if player.Data.AvgPoints != 20.0 || player.Data.SubjectKind != "player" {
		t.Fatalf("unexpected player snapshot: %+v", player.Data)
	}

	rec = api.do(t, http.MethodGet, "/v1/stats/teams/2", "", nil)
	team := decodeEnvelope[snapshotDTO](t, rec)
	if rec.Code != http.StatusOK || team.Data.AvgMinutesPlayed != 35.5 {
		t.Fatalf("unexpected team response status=%d data=%+v", rec.Code, team.Data)
	}
}

func TestRouter_LogGameStatsRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"too many fouls": strings.Replace(validStatLine, `"fouls":2`, `"fouls":7`, 1),
		"minutes range":  strings.Replace(validStatLine, `"minutesPlayed":35.5`, `"minutesPlayed":48.5`, 1),
		"negative":       strings.Replace(validStatLine, `"steals":1`, `"steals":-1`, 1),
		"zero player id": strings.Replace(validStatLine, `"playerId":1`, `"playerId":0`, 1),
		"missing points": strings.Replace(validStatLine, `"points":20,`, ``, 1),
		"unknown field":  strings.Replace(validStatLine, `"gameId":3`, `"gameId":3,"quarter":4`, 1),
		"not json":       `points=20`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			api := newTestAPI(t, nil)

			rec := api.do(t, http.MethodPost, "/v1/stats", body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("unexpected status got=%d body=%s", rec.Code, rec.Body.String())
			}
			if api.store.Len() != 0 {
				t.Fatalf("rejected write touched the cache, entries=%d", api.store.Len())
			}
		})
	}
}

func TestRouter_LogGameStatsLockTimeout(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, nil)

	held, err := api.store.SetIfAbsent(t.Context(), statcache.LockKey(gamestats.SubjectTeam, 2), []byte("other-writer"), time.Minute)
	if err != nil || !held {
		t.Fatalf("seed lock held=%v err=%v", held, err)
	}

	rec := api.do(t, http.MethodPost, "/v1/stats", validStatLine, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status got=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRouter_GetStatsErrors(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, nil)

	if rec := api.do(t, http.MethodGet, "/v1/stats/players/999", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status for miss got=%d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/v1/stats/teams/abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for bad id got=%d", rec.Code)
	}
}

func TestRouter_InternalJobs(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, memory.SeedStatLines())
	auth := map[string]string{internalJobTokenHeader: testJobToken}

	rec := api.do(t, http.MethodPost, "/v1/internal/jobs/refresh-cache", `{"playerId":23,"teamId":14}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got=%d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/v1/internal/jobs/refresh-cache", `{"playerId":23,"teamId":14}`, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected refresh status got=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodGet, "/v1/stats/players/23", "", nil)
	player := decodeEnvelope[snapshotDTO](t, rec)
	if rec.Code != http.StatusOK || player.Data.Games != 2 || player.Data.AvgPoints != 25 {
		t.Fatalf("unexpected refreshed snapshot status=%d data=%+v", rec.Code, player.Data)
	}

	rec = api.do(t, http.MethodPost, "/v1/internal/jobs/refresh-cache", `{"playerId":0,"teamId":14}`, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for invalid notification got=%d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/v1/internal/jobs/warm-cache", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected warm status got=%d body=%s", rec.Code, rec.Body.String())
	}
	warm := decodeEnvelope[usecase.WarmupResult](t, rec)
	if warm.Data.PairCount != 4 || warm.Data.SuccessCount != 4 {
		t.Fatalf("unexpected warm-up result: %+v", warm.Data)
	}
	if rec := api.do(t, http.MethodGet, "/v1/stats/teams/10", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected warmed team entry, got=%d", rec.Code)
	}
}

func TestRouter_SystemRoutes(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, nil)

	if rec := api.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("unexpected healthz status got=%d", rec.Code)
	}
	rec := api.do(t, http.MethodGet, "/openapi.yaml", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/v1/stats") {
		t.Fatalf("unexpected openapi response status=%d", rec.Code)
	}
}
