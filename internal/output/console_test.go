package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/crudbench/internal/config"
	"github.com/wesleyorama2/crudbench/internal/driver"
	"github.com/wesleyorama2/crudbench/internal/report"
	"github.com/wesleyorama2/crudbench/internal/stats"
)

func newTestConsole(opts ...func(*ConsoleConfig)) (*Console, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := ConsoleConfig{Writer: buf, NoColor: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewConsole(cfg), buf
}

func undefinedSummary(name string) *report.RunSummary {
	return &report.RunSummary{
		RunInfo:     report.RunInfo{Name: name, Requested: 3},
		Total:       3,
		Failures:    3,
		MeanMs:      stats.Undefined,
		P50Ms:       stats.Undefined,
		P90Ms:       stats.Undefined,
		P95Ms:       stats.Undefined,
		P99Ms:       stats.Undefined,
		MinMs:       stats.Undefined,
		MaxMs:       stats.Undefined,
		StdDevMs:    stats.Undefined,
		StatusCodes: map[int]int{},
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatNumber(tt.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.input))
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "0ms", formatDurationShort(0))
	assert.Equal(t, "250µs", formatDurationShort(250*time.Microsecond))
	assert.Equal(t, "12ms", formatDurationShort(12*time.Millisecond))
	assert.Equal(t, "1.50s", formatDurationShort(1500*time.Millisecond))
}

func TestFormatMs(t *testing.T) {
	assert.Equal(t, "n/a", formatMs(stats.Undefined))
	assert.Equal(t, "0.00 ms", formatMs(0))
	assert.Equal(t, "12.35 ms", formatMs(12.345))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "10.0 MiB", formatBytes(10<<20))
}

func TestRenderProgressBar(t *testing.T) {
	assert.Equal(t, "[░░░░]", renderProgressBar(0, 4))
	assert.Equal(t, "[██░░]", renderProgressBar(0.5, 4))
	assert.Equal(t, "[████]", renderProgressBar(1.7, 4))
	assert.Equal(t, "[░░░░]", renderProgressBar(-1, 4))
}

func TestConsole_PrintHeader(t *testing.T) {
	c, buf := newTestConsole()
	c.PrintHeader(&config.RunConfig{
		Method:          "POST",
		URL:             "http://localhost:5000/create",
		TotalRequests:   1000,
		Concurrency:     10,
		Timeout:         10 * time.Second,
		MonitorPID:      4242,
		MonitorInterval: 500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "POST http://localhost:5000/create")
	assert.Contains(t, out, "1,000 requests, concurrency 10, timeout 10.0s")
	assert.Contains(t, out, "Monitoring pid 4242 every 500ms")
	assert.NotContains(t, out, "\x1b[", "no escape codes expected with colors disabled")
}

func TestConsole_PrintDiagnostics(t *testing.T) {
	payload, err := config.JSONPayload(`{"name":"bench_item"}`)
	require.NoError(t, err)

	c, buf := newTestConsole()
	c.PrintDiagnostics(&config.RunConfig{
		Method:        "POST",
		URL:           "http://localhost:5000/create",
		Payload:       payload,
		Headers:       map[string]string{"X-B": "2", "X-A": "1"},
		TotalRequests: 5,
		Concurrency:   2,
	})

	out := buf.String()
	assert.Contains(t, out, "[DIAGNOSTIC] Method: POST")
	assert.Contains(t, out, `[DIAGNOSTIC] Data: {"name":"bench_item"}`)
	assert.Contains(t, out, "[DIAGNOSTIC] Content-Type: application/json")
	assert.Less(t, strings.Index(out, "X-A: 1"), strings.Index(out, "X-B: 2"), "headers are sorted")
}

func TestConsole_PrintProgress(t *testing.T) {
	snap := driver.ProgressSnapshot{
		Completed: 100,
		Total:     1000,
		Failures:  2,
		Elapsed:   2 * time.Second,
		P50:       12 * time.Millisecond,
		P95:       40 * time.Millisecond,
	}

	t.Run("line per update", func(t *testing.T) {
		c, buf := newTestConsole()
		c.PrintProgress(snap)
		c.PrintProgress(snap)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "Completed 100/1,000"), lines[0])
		assert.Contains(t, lines[0], "50.0 req/s")
		assert.Contains(t, lines[0], "p95 40ms")
	})

	t.Run("in place on a terminal", func(t *testing.T) {
		c, buf := newTestConsole(func(cfg *ConsoleConfig) { cfg.ForceTTY = true })
		c.PrintProgress(snap)
		assert.True(t, strings.HasPrefix(buf.String(), clearLine))
		assert.NotContains(t, buf.String(), "\n")

		c.PrintArtifact("request records", "out.csv")
		assert.Contains(t, buf.String(), "failures 2\nWrote request records to out.csv")
	})

	t.Run("quiet", func(t *testing.T) {
		c, buf := newTestConsole(func(cfg *ConsoleConfig) { cfg.Quiet = true })
		c.PrintProgress(snap)
		assert.Empty(t, buf.String())
	})
}

func TestConsole_PrintSummary(t *testing.T) {
	c, buf := newTestConsole()
	c.PrintSummary(&report.RunSummary{
		RunInfo:        report.RunInfo{Name: "flask_create", Requested: 4},
		Total:          4,
		Successes:      4,
		SuccessRate:    100,
		MeanMs:         25,
		P50Ms:          25,
		P90Ms:          37,
		P95Ms:          38.5,
		P99Ms:          39.7,
		MinMs:          10,
		MaxMs:          40,
		StdDevMs:       12.91,
		DurationS:      0.5,
		ThroughputRPS:  8,
		StatusCodes:    map[int]int{201: 3, 200: 1},
		Samples:        2,
		PeakCPUPercent: 12.5,
		PeakRSSBytes:   3 << 20,
	})

	out := buf.String()
	assert.Contains(t, out, "flask_create ✓")
	assert.Contains(t, out, "Success rate:      100.0%")
	assert.Contains(t, out, "p95:             38.50 ms")
	assert.Contains(t, out, "Throughput:        8.00 req/s")
	assert.Contains(t, out, "Status codes:      200×1 201×3")
	assert.Contains(t, out, "2 (peak CPU 12.5%, peak RSS 3.0 MiB)")
	assert.NotContains(t, out, "n/a")
}

func TestConsole_PrintSummaryUndefined(t *testing.T) {
	c, buf := newTestConsole()
	c.PrintSummary(undefinedSummary("broken"))

	out := buf.String()
	assert.Contains(t, out, "broken ⚠")
	assert.Contains(t, out, "Mean:            n/a")
	assert.Contains(t, out, "p99:             n/a")
	assert.Contains(t, out, "Success rate:      0.0%")
	assert.NotContains(t, out, "Status codes")
	assert.NotContains(t, out, "NaN")
}

func TestSortByMean(t *testing.T) {
	slow := &report.RunSummary{RunInfo: report.RunInfo{Name: "slow"}, MeanMs: 40}
	fast := &report.RunSummary{RunInfo: report.RunInfo{Name: "fast"}, MeanMs: 5}
	broken := undefinedSummary("broken")
	mid := &report.RunSummary{RunInfo: report.RunInfo{Name: "mid"}, MeanMs: 20}

	input := []*report.RunSummary{broken, slow, fast, mid}
	sorted := SortByMean(input)

	names := make([]string, len(sorted))
	for i, s := range sorted {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"fast", "mid", "slow", "broken"}, names)
	assert.Equal(t, "broken", input[0].Name, "input order is preserved")
}

func TestConsole_PrintComparison(t *testing.T) {
	c, buf := newTestConsole()
	c.PrintComparison([]*report.RunSummary{
		undefinedSummary("fastapi_read"),
		{RunInfo: report.RunInfo{Name: "flask_read"}, Total: 10, Successes: 10, SuccessRate: 100,
			MeanMs: 3, P50Ms: 3, P95Ms: 4, P99Ms: 5, ThroughputRPS: 100},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "RUN"))
	assert.True(t, strings.HasPrefix(lines[2], "flask_read"))
	assert.True(t, strings.HasPrefix(lines[3], "fastapi_read"))
	assert.Contains(t, lines[3], "n/a")
}

func TestConsole_PrintComparisonEmpty(t *testing.T) {
	c, buf := newTestConsole()
	c.PrintComparison(nil)
	assert.Empty(t, buf.String())
}
