// Package metrics defines the Prometheus collectors the pipeline keeps
// current. They live on the default registry and are served by the health
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LatestVersion is the version of the last transaction extracted and
	// accumulated
	LatestVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alluvium_latest_version",
		Help: "Version of the last transaction extracted and accumulated",
	})

	// CommittedVersion is the version of the last transaction durably
	// committed to the sink
	CommittedVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alluvium_committed_version",
		Help: "Version of the last transaction durably committed to the sink",
	})

	// BatchesCommitted counts successful batch commits
	BatchesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alluvium_batches_committed_total",
		Help: "Successful batch commits",
	})

	// RecordsWritten counts records committed to the sink, per table
	RecordsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alluvium_records_written_total",
		Help: "Records committed to the sink",
	}, []string{"table"})

	// SinkRetries counts failed batch commit attempts
	SinkRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alluvium_sink_retries_total",
		Help: "Failed batch commit attempts",
	})

	// ExtractionSkips counts transactions whose extraction failed and was
	// skipped by policy
	ExtractionSkips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alluvium_extraction_skips_total",
		Help: "Extraction failures skipped by policy",
	})

	state = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alluvium_processor_state",
		Help: "Current pipeline state (1 = current)",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(LatestVersion, CommittedVersion, BatchesCommitted,
		RecordsWritten, SinkRetries, ExtractionSkips, state)
}

// SetState marks to as the current pipeline state and clears from
func SetState(from, to string) {
	if from != "" {
		state.WithLabelValues(from).Set(0)
	}
	state.WithLabelValues(to).Set(1)
}
