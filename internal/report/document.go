package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Document is the machine-readable form of one or more run summaries.
type Document struct {
	Timestamp time.Time     `json:"timestamp"`
	Runs      []*RunSummary `json:"runs"`
}

// WriteSummaryJSON writes summaries as an indented Document to path.
func WriteSummaryJSON(path string, timestamp time.Time, summaries []*RunSummary) error {
	if summaries == nil {
		summaries = []*RunSummary{}
	}
	data, err := json.MarshalIndent(Document{Timestamp: timestamp, Runs: summaries}, "", "  ")
	if err != nil {
		return &PersistError{Artifact: ArtifactSummary, Path: path, Err: err}
	}
	if err := writeFile(path, append(data, '\n')); err != nil {
		return &PersistError{Artifact: ArtifactSummary, Path: path, Err: err}
	}
	return nil
}

// WriteMetricsTextfile writes summaries in the Prometheus text format, for
// collection by node_exporter's textfile collector. Undefined statistics are
// omitted.
func WriteMetricsTextfile(path string, summaries []*RunSummary) error {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crudbench_requests",
		Help: "Calls completed in the run, by outcome.",
	}, []string{"run", "outcome"})
	latency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crudbench_latency_milliseconds",
		Help: "Latency statistics of successful calls.",
	}, []string{"run", "stat"})
	throughput := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crudbench_throughput_requests_per_second",
		Help: "Completed calls per second of run wall-clock time.",
	}, []string{"run"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crudbench_duration_seconds",
		Help: "Wall-clock duration of the run.",
	}, []string{"run"})
	peakRSS := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crudbench_monitored_peak_rss_bytes",
		Help: "Peak resident memory of the monitored process.",
	}, []string{"run"})

	reg.MustRegister(requests, latency, throughput, duration, peakRSS)

	for _, s := range summaries {
		requests.WithLabelValues(s.Name, "success").Set(float64(s.Successes))
		requests.WithLabelValues(s.Name, "failure").Set(float64(s.Failures))
		throughput.WithLabelValues(s.Name).Set(s.ThroughputRPS)
		duration.WithLabelValues(s.Name).Set(s.DurationS)
		if s.Samples > 0 {
			peakRSS.WithLabelValues(s.Name).Set(float64(s.PeakRSSBytes))
		}

		for stat, v := range map[string]float64{
			"mean": s.MeanMs, "min": s.MinMs, "max": s.MaxMs, "stddev": s.StdDevMs,
			"p50": s.P50Ms, "p90": s.P90Ms, "p95": s.P95Ms, "p99": s.P99Ms,
		} {
			if optional(v) != nil {
				latency.WithLabelValues(s.Name, stat).Set(v)
			}
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &PersistError{Artifact: ArtifactMetrics, Path: path, Err: err}
		}
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return &PersistError{Artifact: ArtifactMetrics, Path: path, Err: err}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
