// Package metrics exposes the Prometheus instruments of the stats service.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "courtstats"

var lockWaitBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

type Recorder struct {
	writes               *prometheus.CounterVec
	cacheOutcomes        *prometheus.CounterVec
	lockWait             *prometheus.HistogramVec
	lockReleaseAnomalies prometheus.Counter
	notifications        *prometheus.CounterVec
	refreshSkips         *prometheus.CounterVec
	warmupPairs          *prometheus.CounterVec
	circuitState         *prometheus.GaugeVec
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func New(reg prometheus.Registerer, namespace string) *Recorder {
	if namespace == "" {
		namespace = defaultNamespace
	}
	factory := promauto.With(reg)

	return &Recorder{
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stat_line_writes_total",
			Help:      "Stat line writes by terminal outcome.",
		}, []string{"outcome"}),
		cacheOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_commit_outcomes_total",
			Help:      "Cache commit results of successful writes.",
		}, []string{"outcome"}),
		lockWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring the pair lock.",
			Buckets:   lockWaitBuckets,
		}, []string{"caller", "outcome"}),
		lockReleaseAnomalies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_release_anomalies_total",
			Help:      "Releases that found the lock owned by another token or expired.",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Cache refresh notifications by source and outcome.",
		}, []string{"source", "outcome"}),
		refreshSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_skipped_total",
			Help:      "Refresh writes skipped because the cached snapshot was newer.",
		}, []string{"subject"}),
		warmupPairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmup_pairs_total",
			Help:      "Pairs processed by cache warm-up runs.",
		}, []string{"outcome"}),
		circuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_open",
			Help:      "1 while the named dependency breaker is not closed.",
		}, []string{"dependency"}),
	}
}

func (r *Recorder) Write(outcome string) {
	if r == nil {
		return
	}
	r.writes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) CacheOutcome(outcome string) {
	if r == nil {
		return
	}
	r.cacheOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) LockWait(caller, outcome string, waited time.Duration) {
	if r == nil {
		return
	}
	r.lockWait.WithLabelValues(caller, outcome).Observe(waited.Seconds())
}

func (r *Recorder) LockReleaseAnomaly() {
	if r == nil {
		return
	}
	r.lockReleaseAnomalies.Inc()
}

func (r *Recorder) Notification(source, outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(source, outcome).Inc()
}

func (r *Recorder) RefreshSkipped(subject string) {
	if r == nil {
		return
	}
	r.refreshSkips.WithLabelValues(subject).Inc()
}

func (r *Recorder) WarmupPairs(outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.warmupPairs.WithLabelValues(outcome).Add(float64(n))
}

func (r *Recorder) CircuitOpen(dependency string, open bool) {
	if r == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	r.circuitState.WithLabelValues(dependency).Set(v)
}
