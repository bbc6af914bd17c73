package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wesleyorama2/crudbench/internal/driver"
	"github.com/wesleyorama2/crudbench/internal/http"
	"github.com/wesleyorama2/crudbench/internal/monitor"
)

type memorySink struct {
	requests   []RequestRecord
	samples    []SampleRecord
	requestErr error
	sampleErr  error
}

func (m *memorySink) WriteRequests(records []RequestRecord) error {
	m.requests = records
	return m.requestErr
}

func (m *memorySink) WriteSamples(records []SampleRecord) error {
	m.samples = records
	return m.sampleErr
}

func testResult() *driver.Result {
	start := time.Now()
	return &driver.Result{
		Outcomes: []http.Outcome{
			okOutcome(10, 200), okOutcome(20, 200), failedOutcome(30),
		},
		Start:    start,
		End:      start.Add(500 * time.Millisecond),
		Duration: 500 * time.Millisecond,
	}
}

func TestAggregator_Process(t *testing.T) {
	sink := &memorySink{}
	agg := NewAggregator(sink)

	samples := []monitor.Sample{{Timestamp: time.Now(), CPUPercent: 5, RSSBytes: 100}}
	summary, err := agg.Process(Input{
		Info:            RunInfo{Name: "read"},
		Result:          testResult(),
		Samples:         samples,
		SamplesComplete: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successes)
	assert.Equal(t, 1, summary.Failures)
	assert.InDelta(t, 6.0, summary.ThroughputRPS, 1e-9)
	assert.True(t, summary.SamplesComplete)
	assert.Equal(t, 1, summary.Samples)

	assert.Len(t, sink.requests, 3)
	assert.Len(t, sink.samples, 1)
}

func TestAggregator_PersistErrorKeepsSummary(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := &memorySink{
		requestErr: &PersistError{Artifact: ArtifactRequests, Path: "/nope", Err: errors.New("disk full")},
		sampleErr:  errors.New("permission denied"),
	}
	agg := NewAggregator(sink, WithAggregatorLogger(zap.New(core)))

	summary, err := agg.Process(Input{Info: RunInfo{Name: "create"}, Result: testResult()})
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Total)
	assert.True(t, summary.HasLatency())

	var pe *PersistError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "failed to write samples")
	assert.Equal(t, 2, logs.Len())
}

func TestAggregator_NilSinkAndResult(t *testing.T) {
	summary, err := NewAggregator(nil).Process(Input{Info: RunInfo{Name: "nothing"}})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.False(t, summary.HasLatency())
}

func TestAggregator_CSVSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.csv")

	_, err := NewAggregator(NewCSVSink(path, "")).Process(Input{Result: testResult()})
	require.NoError(t, err)

	rows := readCSV(t, path)
	assert.Len(t, rows, 4)
}
