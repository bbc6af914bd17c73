// Package engine runs one configured load run end to end: optional latency
// probe, resource monitor start, load driver, monitor stop and join, then
// aggregation and persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/crudbench/internal/config"
	"github.com/wesleyorama2/crudbench/internal/driver"
	"github.com/wesleyorama2/crudbench/internal/http"
	"github.com/wesleyorama2/crudbench/internal/logging"
	"github.com/wesleyorama2/crudbench/internal/monitor"
	"github.com/wesleyorama2/crudbench/internal/report"
)

// Artifact is an output file written by a run.
type Artifact struct {
	Kind string
	Path string
}

// Result is what a run produced.
type Result struct {
	Summary *report.RunSummary

	// Workers is the pool size used and PeakInFlight the highest number of
	// calls observed in flight at once
	Workers      int
	PeakInFlight int

	// SkippedSamples counts monitor ticks whose sample failed
	SkippedSamples int64

	// Artifacts lists the files that were written successfully
	Artifacts []Artifact
}

// SamplerFactory builds the sampler for a monitored process.
type SamplerFactory func(pid int) (monitor.Sampler, error)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNop(logger)
	}
}

// WithProgress sets the callback receiving periodic progress snapshots.
func WithProgress(fn driver.ProgressFunc) Option {
	return func(e *Engine) {
		e.onProgress = fn
	}
}

// WithBeforeLoad sets a hook called with the final configuration just
// before the first call is dispatched, after the latency probe.
func WithBeforeLoad(fn func(cfg *config.RunConfig)) Option {
	return func(e *Engine) {
		e.beforeLoad = fn
	}
}

// WithSink replaces the CSV sink derived from the configuration.
func WithSink(sink report.Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithSamplerFactory replaces the procfs sampler.
func WithSamplerFactory(fn SamplerFactory) Option {
	return func(e *Engine) {
		e.samplerFactory = fn
	}
}

// WithClientOptions appends options applied to every worker's client.
func WithClientOptions(opts ...http.ClientOption) Option {
	return func(e *Engine) {
		e.clientOptions = append(e.clientOptions, opts...)
	}
}

// WithClock sets the source of the summary document timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine runs a single load run. It is not reusable.
type Engine struct {
	cfg            *config.RunConfig
	logger         *zap.Logger
	onProgress     driver.ProgressFunc
	beforeLoad     func(cfg *config.RunConfig)
	sink           report.Sink
	samplerFactory SamplerFactory
	clientOptions  []http.ClientOption
	now            func() time.Time
}

// New returns an engine for cfg. cfg is copied, defaults are applied to the
// copy and it is validated; a configuration error is returned before any
// network activity.
func New(cfg *config.RunConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, &config.ValidationError{Message: "run configuration is required"}
	}

	c := *cfg
	c.Headers = config.MergeHeaders(cfg.Headers)
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:            &c,
		logger:         zap.NewNop(),
		samplerFactory: procSampler,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = report.NewCSVSink(c.RequestsOutput, c.SamplesOutput)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.RunConfig {
	return e.cfg
}

// Run executes the run.
//
// A configuration or transport initialisation error returns a nil Result.
// Persistence errors are returned together with a complete Result so the
// summary can still be reported. Cancelling ctx stops dispatching new calls;
// the partial run is still summarised and persisted.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	cfg := e.cfg

	var sampler monitor.Sampler
	if cfg.MonitorPID > 0 {
		s, err := e.samplerFactory(cfg.MonitorPID)
		if err != nil {
			return nil, err
		}
		sampler = s
	}

	if cfg.IncludeClientLatency {
		e.probe(ctx)
	}

	req, err := http.NewRequest(cfg.Method, cfg.URL, cfg.Headers, cfg.Payload)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID), zap.String("run", cfg.Name))

	var (
		clientsMu sync.Mutex
		clients   []*http.Client
	)
	defer func() {
		for _, c := range clients {
			c.CloseIdleConnections()
		}
	}()

	factory := func(worker int) (driver.Executor, error) {
		client := http.NewClient(e.workerClientOptions()...)
		clientsMu.Lock()
		clients = append(clients, client)
		clientsMu.Unlock()
		return http.NewExecutor(client, req), nil
	}

	drv, err := driver.New(driver.Config{
		TotalRequests: cfg.TotalRequests,
		Concurrency:   cfg.Concurrency,
		Delay:         cfg.Delay,
		ProgressEvery: cfg.ProgressEvery,
	}, factory, driver.WithLogger(logger), driver.WithProgress(e.onProgress))
	if err != nil {
		return nil, err
	}

	mon := monitor.New(sampler,
		monitor.WithInterval(cfg.MonitorInterval),
		monitor.WithLogger(logger.With(zap.Int("pid", cfg.MonitorPID))),
	)

	if e.beforeLoad != nil {
		e.beforeLoad(cfg)
	}

	logger.Info("load run started",
		zap.String("method", cfg.Method),
		zap.String("url", cfg.URL),
		zap.Int("requests", cfg.TotalRequests),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Int("workers", drv.Workers()),
	)

	// The monitor outlives an interrupted load so the tail of the run is
	// still sampled; it is stopped explicitly below.
	if err := mon.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}

	result, err := drv.Run(ctx)
	mon.Stop()
	joined := mon.Wait(cfg.MonitorJoinTimeout)
	if err != nil {
		return nil, fmt.Errorf("load run failed: %w", err)
	}

	samples, complete := mon.Samples()
	if mon.Enabled() && !joined {
		logger.Warn("sample sequence possibly incomplete",
			zap.Duration("join_timeout", cfg.MonitorJoinTimeout))
	}

	info := report.RunInfo{
		ID:          runID,
		Name:        cfg.Name,
		Method:      cfg.Method,
		URL:         cfg.URL,
		Requested:   cfg.TotalRequests,
		Concurrency: cfg.Concurrency,
	}
	agg := report.NewAggregator(e.sink, report.WithAggregatorLogger(logger))
	summary, persistErr := agg.Process(report.Input{
		Info:            info,
		Result:          result,
		Samples:         samples,
		SamplesComplete: complete,
	})

	logger.Info("load run finished",
		zap.Int("total", summary.Total),
		zap.Int("failures", summary.Failures),
		zap.Float64("duration_s", summary.DurationS),
		zap.Float64("throughput_rps", summary.ThroughputRPS),
		zap.Bool("interrupted", summary.Interrupted),
	)

	out := &Result{
		Summary:        summary,
		Workers:        result.Workers,
		PeakInFlight:   result.PeakInFlight,
		SkippedSamples: mon.Skipped(),
	}

	errs := []error{persistErr}
	out.Artifacts = e.csvArtifacts(persistErr, len(samples))
	errs = append(errs, e.writeDocuments(out, logger))

	for _, a := range out.Artifacts {
		logger.Info("output written", zap.String("artifact", a.Kind), zap.String("path", a.Path))
	}
	return out, errors.Join(errs...)
}

// probe measures client latency once and records it as a request header.
// A failed probe records zero.
func (e *Engine) probe(ctx context.Context) {
	client := http.NewClient(e.workerClientOptions()...)
	defer client.CloseIdleConnections()

	d, err := http.ProbeLatency(ctx, client, e.cfg.URL)
	if err != nil {
		e.logger.Warn("client latency probe failed", zap.String("url", e.cfg.URL), zap.Error(err))
		d = 0
	}
	e.cfg.SetClientLatency(d)
	e.logger.Debug("client latency probed", zap.Duration("latency", d))
}

func (e *Engine) workerClientOptions() []http.ClientOption {
	opts := []http.ClientOption{
		http.WithTimeout(e.cfg.Timeout),
		http.WithInsecureSkipVerify(e.cfg.InsecureSkipVerify),
	}
	return append(opts, e.clientOptions...)
}

// csvArtifacts lists the record files the CSV sink wrote.
func (e *Engine) csvArtifacts(persistErr error, samples int) []Artifact {
	sink, ok := e.sink.(*report.CSVSink)
	if !ok {
		return nil
	}

	failed := make(map[string]bool)
	for _, err := range unjoin(persistErr) {
		var pe *report.PersistError
		if errors.As(err, &pe) {
			failed[pe.Artifact] = true
		}
	}

	var out []Artifact
	if sink.RequestsPath != "" && !failed[report.ArtifactRequests] {
		out = append(out, Artifact{Kind: report.ArtifactRequests, Path: sink.RequestsPath})
	}
	if sink.SamplesPath != "" && samples > 0 && !failed[report.ArtifactSamples] {
		out = append(out, Artifact{Kind: report.ArtifactSamples, Path: sink.SamplesPath})
	}
	return out
}

// writeDocuments writes the JSON summary and metrics textfile if configured.
func (e *Engine) writeDocuments(out *Result, logger *zap.Logger) error {
	var errs []error
	summaries := []*report.RunSummary{out.Summary}

	if path := e.cfg.SummaryOutput; path != "" {
		if err := report.WriteSummaryJSON(path, e.now(), summaries); err != nil {
			logger.Error("failed to write summary", zap.Error(err))
			errs = append(errs, err)
		} else {
			out.Artifacts = append(out.Artifacts, Artifact{Kind: report.ArtifactSummary, Path: path})
		}
	}
	if path := e.cfg.MetricsTextfile; path != "" {
		if err := report.WriteMetricsTextfile(path, summaries); err != nil {
			logger.Error("failed to write metrics", zap.Error(err))
			errs = append(errs, err)
		} else {
			out.Artifacts = append(out.Artifacts, Artifact{Kind: report.ArtifactMetrics, Path: path})
		}
	}
	return errors.Join(errs...)
}

func procSampler(pid int) (monitor.Sampler, error) {
	s, err := monitor.NewProcSampler(pid)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
