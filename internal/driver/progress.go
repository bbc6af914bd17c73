package driver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/crudbench/internal/http"
)

// Histogram range in microseconds: 1us to 1 hour, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// ProgressSnapshot is a point-in-time view of a running load.
//
// Percentiles come from an HDR histogram and are approximate; the final
// summary is computed exactly from the collected outcomes.
type ProgressSnapshot struct {
	Completed int64
	Total     int64
	Failures  int64
	Elapsed   time.Duration
	P50       time.Duration
	P95       time.Duration
}

// Rate returns completions per second so far.
func (s ProgressSnapshot) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Completed) / s.Elapsed.Seconds()
}

// Fraction returns the completed share of the total, in [0, 1].
func (s ProgressSnapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 1
	}
	return float64(s.Completed) / float64(s.Total)
}

// ProgressFunc receives a snapshot every N completions.
type ProgressFunc func(ProgressSnapshot)

// Progress tracks completions and live latency percentiles.
//
// Counters are atomic; the histogram is guarded by a mutex because
// hdrhistogram is not safe for concurrent writers.
type Progress struct {
	total     int64
	every     int64
	start     time.Time
	completed atomic.Int64
	failures  atomic.Int64

	histMu sync.Mutex
	hist   *hdrhistogram.Histogram
}

// NewProgress returns a tracker that reports every `every` completions.
// A non-positive every disables periodic reports.
func NewProgress(total, every int) *Progress {
	return &Progress{
		total: int64(total),
		every: int64(every),
		start: time.Now(),
		hist:  hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

// Record counts one outcome. It returns a snapshot and true when this
// completion crosses a reporting boundary.
func (p *Progress) Record(o http.Outcome) (ProgressSnapshot, bool) {
	if !o.Success {
		p.failures.Add(1)
	} else {
		micros := o.Latency.Microseconds()
		if micros < histogramMin {
			micros = histogramMin
		}
		if micros > histogramMax {
			micros = histogramMax
		}
		p.histMu.Lock()
		p.hist.RecordValue(micros)
		p.histMu.Unlock()
	}

	n := p.completed.Add(1)
	if p.every <= 0 || n%p.every != 0 {
		return ProgressSnapshot{}, false
	}
	return p.Snapshot(), true
}

// Snapshot returns the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.histMu.Lock()
	p50 := p.hist.ValueAtQuantile(50)
	p95 := p.hist.ValueAtQuantile(95)
	p.histMu.Unlock()

	return ProgressSnapshot{
		Completed: p.completed.Load(),
		Total:     p.total,
		Failures:  p.failures.Load(),
		Elapsed:   time.Since(p.start),
		P50:       time.Duration(p50) * time.Microsecond,
		P95:       time.Duration(p95) * time.Microsecond,
	}
}
