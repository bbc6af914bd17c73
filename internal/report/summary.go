// Package report turns the outcome set of a run into a RunSummary and shapes
// the per-request and per-sample record streams for persistence.
package report

import (
	"encoding/json"
	"time"

	"github.com/wesleyorama2/crudbench/internal/http"
	"github.com/wesleyorama2/crudbench/internal/monitor"
	"github.com/wesleyorama2/crudbench/internal/stats"
)

// RunInfo identifies a run in its summary.
type RunInfo struct {
	ID          string
	Name        string
	Method      string
	URL         string
	Requested   int
	Concurrency int
}

// RunSummary is computed once per run and never mutated afterwards.
//
// Latency statistics cover successful calls only and are stats.Undefined
// (NaN) when there were none; use HasLatency before printing them.
type RunSummary struct {
	RunInfo

	Total       int
	Successes   int
	Failures    int
	SuccessRate float64

	MeanMs   float64
	P50Ms    float64
	P90Ms    float64
	P95Ms    float64
	P99Ms    float64
	MinMs    float64
	MaxMs    float64
	StdDevMs float64

	DurationS     float64
	ThroughputRPS float64

	// StatusCodes counts successful calls by HTTP status
	StatusCodes map[int]int

	Samples         int
	SamplesComplete bool
	PeakCPUPercent  float64
	PeakRSSBytes    uint64

	Interrupted bool
	Start       time.Time
	End         time.Time
}

// HasLatency reports whether latency statistics are defined.
func (s *RunSummary) HasLatency() bool {
	return !stats.IsUndefined(s.MeanMs)
}

// Summarize computes the summary of a run.
//
// duration is the driver's wall-clock run time; throughput is the outcome
// count divided by it, and 0 when the duration is not positive.
func Summarize(info RunInfo, outcomes []http.Outcome, duration time.Duration, samples []monitor.Sample) *RunSummary {
	s := &RunSummary{
		RunInfo:     info,
		Total:       len(outcomes),
		StatusCodes: make(map[int]int),
		DurationS:   duration.Seconds(),
		Samples:     len(samples),
	}

	latencies := make([]float64, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Success {
			s.Failures++
			continue
		}
		s.Successes++
		s.StatusCodes[o.StatusCode]++
		latencies = append(latencies, o.LatencyMs())
	}

	if s.Total > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Total) * 100
	}
	if s.DurationS > 0 {
		s.ThroughputRPS = float64(s.Total) / s.DurationS
	}

	d := stats.Describe(latencies)
	s.MeanMs = d.Mean
	s.P50Ms = d.P50
	s.P90Ms = d.P90
	s.P95Ms = d.P95
	s.P99Ms = d.P99
	s.MinMs = d.Min
	s.MaxMs = d.Max
	s.StdDevMs = d.StdDev

	for _, sample := range samples {
		if sample.CPUPercent > s.PeakCPUPercent {
			s.PeakCPUPercent = sample.CPUPercent
		}
		if sample.RSSBytes > s.PeakRSSBytes {
			s.PeakRSSBytes = sample.RSSBytes
		}
	}

	return s
}

type summaryJSON struct {
	ID          string `json:"runId"`
	Name        string `json:"name"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	Requested   int    `json:"requested"`
	Concurrency int    `json:"concurrency"`

	Total       int     `json:"total"`
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	SuccessRate float64 `json:"successRate"`

	MeanMs   *float64 `json:"meanMs"`
	P50Ms    *float64 `json:"p50Ms"`
	P90Ms    *float64 `json:"p90Ms"`
	P95Ms    *float64 `json:"p95Ms"`
	P99Ms    *float64 `json:"p99Ms"`
	MinMs    *float64 `json:"minMs"`
	MaxMs    *float64 `json:"maxMs"`
	StdDevMs *float64 `json:"stdDevMs"`

	DurationS     float64     `json:"durationS"`
	ThroughputRPS float64     `json:"throughputRps"`
	StatusCodes   map[int]int `json:"statusCodes"`

	Samples         int     `json:"samples"`
	SamplesComplete bool    `json:"samplesComplete"`
	PeakCPUPercent  float64 `json:"peakCpuPercent"`
	PeakRSSBytes    uint64  `json:"peakRssBytes"`

	Interrupted bool      `json:"interrupted,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// MarshalJSON encodes undefined statistics as null.
func (s *RunSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		ID:              s.ID,
		Name:            s.Name,
		Method:          s.Method,
		URL:             s.URL,
		Requested:       s.Requested,
		Concurrency:     s.Concurrency,
		Total:           s.Total,
		Successes:       s.Successes,
		Failures:        s.Failures,
		SuccessRate:     s.SuccessRate,
		MeanMs:          optional(s.MeanMs),
		P50Ms:           optional(s.P50Ms),
		P90Ms:           optional(s.P90Ms),
		P95Ms:           optional(s.P95Ms),
		P99Ms:           optional(s.P99Ms),
		MinMs:           optional(s.MinMs),
		MaxMs:           optional(s.MaxMs),
		StdDevMs:        optional(s.StdDevMs),
		DurationS:       s.DurationS,
		ThroughputRPS:   s.ThroughputRPS,
		StatusCodes:     s.StatusCodes,
		Samples:         s.Samples,
		SamplesComplete: s.SamplesComplete,
		PeakCPUPercent:  s.PeakCPUPercent,
		PeakRSSBytes:    s.PeakRSSBytes,
		Interrupted:     s.Interrupted,
		Start:           s.Start,
		End:             s.End,
	})
}

func optional(v float64) *float64 {
	if stats.IsUndefined(v) {
		return nil
	}
	return &v
}
