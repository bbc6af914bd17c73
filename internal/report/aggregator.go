package report

import (
	"errors"

	"go.uber.org/zap"

	"github.com/wesleyorama2/crudbench/internal/driver"
	"github.com/wesleyorama2/crudbench/internal/logging"
	"github.com/wesleyorama2/crudbench/internal/monitor"
)

// Input is everything the aggregator needs about a finished run.
type Input struct {
	Info   RunInfo
	Result *driver.Result

	// Samples is the monitor's sequence; SamplesComplete is false when the
	// monitor loop did not exit within its join timeout
	Samples         []monitor.Sample
	SamplesComplete bool
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(logger *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logging.OrNop(logger)
	}
}

// Aggregator computes run summaries and hands the record streams to a Sink.
type Aggregator struct {
	sink   Sink
	logger *zap.Logger
}

// NewAggregator returns an aggregator writing to sink. A nil sink persists
// nothing.
func NewAggregator(sink Sink, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{sink: sink, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Process summarises the run and persists both record streams.
//
// The summary is always returned. The error, if any, joins one
// *PersistError per artifact that could not be written.
func (a *Aggregator) Process(in Input) (*RunSummary, error) {
	result := in.Result
	if result == nil {
		result = &driver.Result{}
	}

	summary := Summarize(in.Info, result.Outcomes, result.Duration, in.Samples)
	summary.SamplesComplete = in.SamplesComplete
	summary.Interrupted = result.Interrupted
	summary.Start = result.Start
	summary.End = result.End

	if a.sink == nil {
		return summary, nil
	}

	var errs []error
	if err := a.sink.WriteRequests(RequestRecords(result.Outcomes)); err != nil {
		errs = append(errs, asPersistError(ArtifactRequests, err))
	}
	if err := a.sink.WriteSamples(SampleRecords(in.Samples)); err != nil {
		errs = append(errs, asPersistError(ArtifactSamples, err))
	}

	for _, err := range errs {
		a.logger.Error("failed to persist records", zap.String("run", summary.Name), zap.Error(err))
	}
	return summary, errors.Join(errs...)
}

func asPersistError(artifact string, err error) error {
	var pe *PersistError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistError{Artifact: artifact, Err: err}
}
