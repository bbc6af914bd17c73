// Package driver runs a fixed volume of calls through a bounded worker pool.
//
// The pool has min(concurrency, total) workers. Each worker owns one
// Executor, built once by the factory, and pulls call indexes from a shared
// queue, so at most `concurrency` calls are ever in flight and a worker's
// calls are strictly sequential. Outcomes are collected into a Collector and
// returned only after every dispatched call has completed.
package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/crudbench/internal/http"
	"github.com/wesleyorama2/crudbench/internal/logging"
)

// Executor performs one call and reports its outcome without failing.
type Executor interface {
	Execute(ctx context.Context) http.Outcome
}

// ExecutorFactory builds the executor owned by worker id. An error means the
// transport cannot be initialised and fails the whole run.
type ExecutorFactory func(worker int) (Executor, error)

// Config controls a driver run.
type Config struct {
	// TotalRequests is the exact number of calls to dispatch (>= 0)
	TotalRequests int

	// Concurrency bounds the calls in flight; values below 1 become 1
	Concurrency int

	// Delay is a pause between consecutive calls of one worker
	Delay time.Duration

	// ProgressEvery reports progress every N completions; 0 disables it
	ProgressEvery int
}

// Result is the complete outcome set of a run.
type Result struct {
	Outcomes []http.Outcome

	// Wall-clock bounds of the run, from first dispatch to last completion
	Start    time.Time
	End      time.Time
	Duration time.Duration

	// Workers is the pool size actually used
	Workers int

	// PeakInFlight is the highest number of concurrent calls observed
	PeakInFlight int

	// Interrupted is set when the context was cancelled before the full
	// volume was dispatched
	Interrupted bool
}

// Successes returns the number of successful outcomes.
func (r *Result) Successes() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		d.logger = logging.OrNop(logger)
	}
}

// WithProgress sets the progress callback. It is invoked from the worker
// whose completion crossed the boundary, with no lock held.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Driver) {
		d.onProgress = fn
	}
}

// Driver dispatches calls through a bounded worker pool.
type Driver struct {
	cfg        Config
	factory    ExecutorFactory
	logger     *zap.Logger
	onProgress ProgressFunc

	inFlight atomic.Int32
	peak     atomic.Int32
}

// New returns a driver. Concurrency below 1 is clamped to 1.
func New(cfg Config, factory ExecutorFactory, opts ...Option) (*Driver, error) {
	if factory == nil {
		return nil, fmt.Errorf("driver: executor factory is required")
	}
	if cfg.TotalRequests < 0 {
		return nil, fmt.Errorf("driver: total requests must be >= 0, got %d", cfg.TotalRequests)
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("driver: delay must be >= 0, got %s", cfg.Delay)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	d := &Driver{
		cfg:     cfg,
		factory: factory,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Workers returns the pool size a run will use.
func (d *Driver) Workers() int {
	if d.cfg.TotalRequests < d.cfg.Concurrency {
		return d.cfg.TotalRequests
	}
	return d.cfg.Concurrency
}

// Run dispatches the configured volume and blocks until every dispatched
// call has completed.
//
// Cancelling ctx stops dispatch; calls already in flight run to completion
// under their own timeout and are included in the result.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	workers := d.Workers()

	executors := make([]Executor, workers)
	for i := range executors {
		exec, err := d.factory(i)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise transport for worker %d: %w", i, err)
		}
		executors[i] = exec
	}

	d.inFlight.Store(0)
	d.peak.Store(0)

	collector := NewCollector(d.cfg.TotalRequests)
	progress := NewProgress(d.cfg.TotalRequests, d.cfg.ProgressEvery)
	jobs := make(chan int)

	d.logger.Debug("driver starting",
		zap.Int("total", d.cfg.TotalRequests),
		zap.Int("concurrency", d.cfg.Concurrency),
		zap.Int("workers", workers),
	)

	start := time.Now()

	var wg sync.WaitGroup
	for i, exec := range executors {
		wg.Add(1)
		go d.runWorker(ctx, i, exec, jobs, collector, progress, &wg)
	}

	dispatched := d.dispatch(ctx, jobs)
	wg.Wait()
	end := time.Now()

	result := &Result{
		Outcomes:     collector.Outcomes(),
		Start:        start,
		End:          end,
		Duration:     end.Sub(start),
		Workers:      workers,
		PeakInFlight: int(d.peak.Load()),
		Interrupted:  dispatched < d.cfg.TotalRequests,
	}

	if result.Interrupted {
		d.logger.Warn("dispatch stopped before the full volume",
			zap.Int("dispatched", dispatched),
			zap.Int("total", d.cfg.TotalRequests),
			zap.Error(ctx.Err()),
		)
	}
	return result, nil
}

// dispatch feeds call indexes to the workers and returns how many were sent.
func (d *Driver) dispatch(ctx context.Context, jobs chan<- int) int {
	defer close(jobs)
	for i := 0; i < d.cfg.TotalRequests; i++ {
		select {
		case <-ctx.Done():
			return i
		default:
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			return i
		}
	}
	return d.cfg.TotalRequests
}

func (d *Driver) runWorker(ctx context.Context, id int, exec Executor, jobs <-chan int,
	collector *Collector, progress *Progress, wg *sync.WaitGroup) {
	defer wg.Done()

	// In-flight calls finish even when dispatch is cancelled.
	callCtx := context.WithoutCancel(ctx)

	first := true
	for range jobs {
		if !first && d.cfg.Delay > 0 {
			d.pause(ctx)
		}
		first = false

		d.enter()
		outcome := exec.Execute(callCtx)
		d.inFlight.Add(-1)

		collector.Add(outcome)
		if snap, ok := progress.Record(outcome); ok && d.onProgress != nil {
			d.onProgress(snap)
		}
	}

	d.logger.Debug("worker finished", zap.Int("worker", id))
}

func (d *Driver) enter() {
	n := d.inFlight.Add(1)
	for {
		peak := d.peak.Load()
		if n <= peak || d.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (d *Driver) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.cfg.Delay):
	}
}
