package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
	// OutcomeTimeout labels extraction calls that hit their deadline.
	OutcomeTimeout = "timeout"
)

const namespace = "order_agent"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of pipeline runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_seconds",
			Help:      "Pipeline run latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 240},
		},
	)

	fetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Raw order fetch attempts against the upstream provider.",
		},
		[]string{"outcome"},
	)

	extractionChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_chunks_total",
			Help:      "Extraction calls per chunk, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	validationRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Candidate orders dropped because a field could not be found in the raw text.",
		},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Reorder predictions attempted, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches order-agent collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		fetchAttemptsTotal,
		extractionChunksTotal,
		validationRejectionsTotal,
		predictionsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	runsTotal.WithLabelValues(normalise(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetchAttempt counts one upstream fetch attempt.
func ObserveFetchAttempt(outcome string) {
	fetchAttemptsTotal.WithLabelValues(normalise(outcome)).Inc()
}

// ObserveExtractionChunk counts one extraction call.
func ObserveExtractionChunk(outcome string) {
	extractionChunksTotal.WithLabelValues(normalise(outcome)).Inc()
}

// ObserveValidationRejections adds n dropped candidates.
func ObserveValidationRejections(n int) {
	if n > 0 {
		validationRejectionsTotal.Add(float64(n))
	}
}

// ObservePrediction counts one scoring call.
func ObservePrediction(outcome string) {
	predictionsTotal.WithLabelValues(normalise(outcome)).Inc()
}

func normalise(outcome string) string {
	switch outcome {
	case OutcomeError, OutcomeTimeout:
		return outcome
	default:
		return OutcomeSuccess
	}
}
