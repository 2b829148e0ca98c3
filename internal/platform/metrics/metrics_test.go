package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountsByLabel(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec := New(reg, "test")

	rec.Write("done")
	rec.Write("done")
	rec.Write("aborted")
	rec.CacheOutcome("invalidated")
	rec.LockReleaseAnomaly()
	rec.Notification("kafka", "failed")
	rec.WarmupPairs("success", 3)
	rec.WarmupPairs("failed", 0)
	rec.CircuitOpen("redis", true)
	rec.LockWait("write", "acquired", 20*time.Millisecond)

	if got := testutil.ToFloat64(rec.writes.WithLabelValues("done")); got != 2 {
		t.Fatalf("unexpected done writes got=%v want=2", got)
	}
	if got := testutil.ToFloat64(rec.writes.WithLabelValues("aborted")); got != 1 {
		t.Fatalf("unexpected aborted writes got=%v want=1", got)
	}
	if got := testutil.ToFloat64(rec.cacheOutcomes.WithLabelValues("invalidated")); got != 1 {
		t.Fatalf("unexpected cache outcome got=%v want=1", got)
	}
	if got := testutil.ToFloat64(rec.lockReleaseAnomalies); got != 1 {
		t.Fatalf("unexpected anomalies got=%v want=1", got)
	}
	if got := testutil.ToFloat64(rec.notifications.WithLabelValues("kafka", "failed")); got != 1 {
		t.Fatalf("unexpected notifications got=%v want=1", got)
	}
	if got := testutil.ToFloat64(rec.warmupPairs.WithLabelValues("success")); got != 3 {
		t.Fatalf("unexpected warmup pairs got=%v want=3", got)
	}
	if got := testutil.ToFloat64(rec.circuitState.WithLabelValues("redis")); got != 1 {
		t.Fatalf("unexpected circuit gauge got=%v want=1", got)
	}
	if got := testutil.CollectAndCount(rec.lockWait); got != 1 {
		t.Fatalf("unexpected lock wait series got=%d want=1", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var rec *Recorder
	rec.Write("done")
	rec.CacheOutcome("committed")
	rec.LockWait("write", "timeout", time.Second)
	rec.LockReleaseAnomaly()
	rec.Notification("push", "processed")
	rec.RefreshSkipped("player")
	rec.WarmupPairs("success", 1)
	rec.CircuitOpen("qstash", false)
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rec := New(reg, "")
	rec.Write("done")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `courtstats_stat_line_writes_total{outcome="done"} 1`) {
		t.Fatalf("expected write counter in scrape output")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected go runtime collector in scrape output")
	}
}
