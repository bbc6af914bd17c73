// Package monitor samples CPU and memory usage of a process while a load run
// is in progress.
//
// A Monitor moves through Idle, Running and Stopped, in that order only. The
// sampling loop is the single writer of the sample sequence; the sequence
// becomes readable once the loop has exited, which callers observe with Wait.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/crudbench/internal/logging"
)

// DefaultInterval is the default sampling period.
const DefaultInterval = 500 * time.Millisecond

// Sample is one observation of the monitored process.
type Sample struct {
	Timestamp  time.Time
	CPUPercent float64
	RSSBytes   uint64
}

// Sampler reads the current CPU utilisation and resident memory of a process.
// It is called from a single goroutine.
type Sampler interface {
	Sample() (cpuPercent float64, rssBytes uint64, err error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() (float64, uint64, error)

// Sample calls f.
func (f SamplerFunc) Sample() (float64, uint64, error) {
	return f()
}

// State is the lifecycle state of a Monitor.
type State int32

const (
	// StateIdle is the state before Start.
	StateIdle State = iota
	// StateRunning means the sampling loop is active.
	StateRunning
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the sampling period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		m.logger = logging.OrNop(logger)
	}
}

// Monitor periodically samples a process until stopped.
//
// A Monitor with a nil Sampler is a no-op: it follows the same state machine
// and yields an empty sample sequence.
type Monitor struct {
	sampler  Sampler
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	state    atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once

	// written only by the sampling loop
	samples []Sample
	skipped atomic.Int64
}

// New returns an idle monitor.
func New(sampler Sampler, opts ...Option) *Monitor {
	m := &Monitor{
		sampler:  sampler,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether the monitor has a sampler.
func (m *Monitor) Enabled() bool {
	return m.sampler != nil
}

// State returns the current state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Interval returns the sampling period.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start moves the monitor from Idle to Running and spawns the sampling loop.
// The loop also exits when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateIdle {
		return fmt.Errorf("monitor: cannot start from state %s", m.State())
	}
	m.state.Store(int32(StateRunning))

	if m.sampler == nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.logger.Info("resource monitor started", zap.Duration("interval", m.interval))
	go m.run(loopCtx)
	return nil
}

// Stop signals the sampling loop to exit at its next wake-up. It does not
// wait; use Wait to join. Stop is idempotent and may be called in any state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.cancel != nil:
		m.cancel()
	case m.State() != StateStopped:
		// no loop was started, so there is nothing to join
		m.state.Store(int32(StateStopped))
		m.markDone()
	}
}

// Wait blocks until the sampling loop has exited or timeout elapses, and
// reports whether the loop exited.
func (m *Monitor) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-m.done:
		return true
	case <-timer.C:
		return false
	}
}

// Samples returns a copy of the recorded samples and true once the loop has
// exited. While the loop is still running it returns nil and false.
func (m *Monitor) Samples() ([]Sample, bool) {
	select {
	case <-m.done:
	default:
		return nil, false
	}

	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out, true
}

// Skipped returns the number of ticks whose sample failed.
func (m *Monitor) Skipped() int64 {
	return m.skipped.Load()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.markDone()
	defer m.state.Store(int32(StateStopped))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("resource monitor stopped",
				zap.Int("samples", len(m.samples)),
				zap.Int64("skipped", m.skipped.Load()),
			)
			return
		case <-ticker.C:
			m.sampleOnce()
		}
	}
}

func (m *Monitor) sampleOnce() {
	cpu, rss, err := m.sampler.Sample()
	if err != nil {
		m.skipped.Add(1)
		m.logger.Debug("resource sample skipped", zap.Error(err))
		return
	}
	m.samples = append(m.samples, Sample{
		Timestamp:  time.Now(),
		CPUPercent: cpu,
		RSSBytes:   rss,
	})
}

func (m *Monitor) markDone() {
	m.doneOnce.Do(func() { close(m.done) })
}
