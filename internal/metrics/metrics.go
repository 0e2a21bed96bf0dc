// Package metrics exposes validator Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/veritas/internal/model"
)

var (
	// minerOutcomes counts resolved miner calls.
	// Labels: kind (verify, review), outcome (ok, timeout, malformed, network_error)
	minerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "miner_outcomes_total",
		Help:      "Resolved miner calls by outcome",
	}, []string{"kind", "outcome"})

	// lateResponses counts responses that arrived after their collection closed
	lateResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "late_responses_total",
		Help:      "Responses discarded because they arrived after collection closed",
	}, []string{"kind"})

	// dispatchLatency measures miner round-trips, retries included
	dispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veritas",
		Name:      "dispatch_latency_seconds",
		Help:      "Miner call latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 12, 20},
	}, []string{"kind"})

	// networkRetries counts retried NetworkError calls
	networkRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "network_retries_total",
		Help:      "Miner calls retried after a network error",
	})

	// crossCheckTally counts cross-check outcomes.
	// Labels: result (agree, disagree, no_quorum)
	crossCheckTally = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "crosscheck_tally_total",
		Help:      "Cross-check tallies by result",
	}, []string{"result"})

	// roundDuration measures a full round from dispatch to publish
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "veritas",
		Name:      "round_duration_seconds",
		Help:      "Round duration in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 60},
	})

	// rounds counts completed rounds.
	// Labels: status (ok, failed)
	rounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "rounds_total",
		Help:      "Rounds run by status",
	}, []string{"status"})

	// minerWeight is the last published weight per miner
	minerWeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "veritas",
		Name:      "miner_weight",
		Help:      "Published weight per miner",
	}, []string{"miner"})

	// weightVersion is the version of the last published weight vector
	weightVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "veritas",
		Name:      "weight_vector_version",
		Help:      "Version of the last published weight vector",
	})
)

// Call kinds
const (
	KindVerify = "verify"
	KindReview = "review"
)

// RecordOutcome records one resolved miner call
func RecordOutcome(kind string, outcome model.Outcome, latency time.Duration) {
	minerOutcomes.WithLabelValues(kind, string(outcome)).Inc()
	dispatchLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordLate records a response discarded after collection closed
func RecordLate(kind string) {
	lateResponses.WithLabelValues(kind).Inc()
}

// RecordRetry records a network error retry
func RecordRetry() {
	networkRetries.Inc()
}

// RecordTally records a cross-check tally result
func RecordTally(result string) {
	crossCheckTally.WithLabelValues(result).Inc()
}

// RecordRound records a finished round
func RecordRound(err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	rounds.WithLabelValues(status).Inc()
	roundDuration.Observe(d.Seconds())
}

// RecordWeights replaces the per-miner weight gauges with vector contents
func RecordWeights(vector *model.WeightVector) {
	if vector == nil {
		return
	}
	minerWeight.Reset()
	for miner, w := range vector.Weights {
		minerWeight.WithLabelValues(miner).Set(w)
	}
	weightVersion.Set(float64(vector.Version))
}
