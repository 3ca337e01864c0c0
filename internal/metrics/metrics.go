package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	// OutcomeSuccess labels fetches and runs that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels fetches and runs that failed.
	OutcomeError = "error"
	// OutcomeSkipped labels runs that found the day already claimed.
	OutcomeSkipped = "skipped"
)

var (
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_digest",
			Name:      "fetch_total",
			Help:      "Upstream fetches issued while building the digest, partitioned by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	fetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_digest",
			Name:      "fetch_seconds",
			Help:      "Upstream fetch latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"source"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_digest",
			Name:      "runs_total",
			Help:      "Digest runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_digest",
			Name:      "run_seconds",
			Help:      "End-to-end digest run latency in seconds.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	degradedSections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_digest",
			Name:      "degraded_sections",
			Help:      "Report sections that fell back to their empty form in the last run.",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		fetchTotal,
		fetchDurationSeconds,
		runsTotal,
		runDurationSeconds,
		degradedSections,
	}
}

// Register attaches the digest collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	for _, collector := range collectors() {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveFetch records one upstream call against source.
func ObserveFetch(source string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	fetchTotal.WithLabelValues(source, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(source).Observe(max(duration, 0).Seconds())
}

// ObserveRun records a finished run. Unknown outcomes count as errors.
func ObserveRun(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeSkipped:
	default:
		outcome = OutcomeError
	}
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.Observe(max(duration, 0).Seconds())
}

// SetDegradedSections records how many sections degraded in the last build.
func SetDegradedSections(n int) {
	degradedSections.Set(float64(n))
}

// Push sends the current values to a Prometheus Pushgateway. The digest is a
// batch job, so nothing scrapes it directly.
func Push(ctx context.Context, url, job string) error {
	pusher := push.New(url, job)
	for _, collector := range collectors() {
		pusher = pusher.Collector(collector)
	}
	return pusher.PushContext(ctx)
}
