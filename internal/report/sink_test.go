package report

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader = f
	switch filepath.Ext(path) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}

	rows, err := csv.NewReader(r).ReadAll()
	require.NoError(t, err)
	return rows
}

func testRecords() ([]RequestRecord, []SampleRecord) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []RequestRecord{
			{Timestamp: ts, Success: true, LatencyMs: 1.5, StatusCode: 200},
			{Timestamp: ts, Success: false, LatencyMs: 10},
		}, []SampleRecord{
			{Timestamp: ts, CPUPercent: 3.5, RSSBytes: 2048},
		}
}

func TestCSVSink(t *testing.T) {
	for _, ext := range []string{".csv", ".csv.gz", ".csv.zst"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			requestsPath := filepath.Join(dir, "nested", "create_100"+ext)
			samplesPath := filepath.Join(dir, "nested", "create_100.resources"+ext)

			reqs, samples := testRecords()
			sink := NewCSVSink(requestsPath, samplesPath)
			require.NoError(t, sink.WriteRequests(reqs))
			require.NoError(t, sink.WriteSamples(samples))

			rows := readCSV(t, requestsPath)
			require.Len(t, rows, 3)
			assert.Equal(t, RequestHeader, rows[0])
			assert.Equal(t, []string{"2026-03-01T12:00:00.000000+00:00", "1", "1.500", "200"}, rows[1])
			assert.Equal(t, []string{"2026-03-01T12:00:00.000000+00:00", "0", "10.000", ""}, rows[2])

			rows = readCSV(t, samplesPath)
			require.Len(t, rows, 2)
			assert.Equal(t, SampleHeader, rows[0])
			assert.Equal(t, []string{"2026-03-01T12:00:00.000000+00:00", "3.5", "2048"}, rows[1])
		})
	}
}

func TestCSVSink_EmptyRequestsStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, NewCSVSink(path, "").WriteRequests(nil))

	rows := readCSV(t, path)
	assert.Equal(t, [][]string{RequestHeader}, rows)
}

func TestCSVSink_NoSamplesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, NewCSVSink("", path).WriteSamples(nil))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCSVSink_DisabledStreams(t *testing.T) {
	reqs, samples := testRecords()
	sink := NewCSVSink("", "")
	assert.NoError(t, sink.WriteRequests(reqs))
	assert.NoError(t, sink.WriteSamples(samples))
}

func TestCSVSink_PersistError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	reqs, _ := testRecords()
	err := NewCSVSink(filepath.Join(blocker, "out.csv"), "").WriteRequests(reqs)
	require.Error(t, err)

	var pe *PersistError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ArtifactRequests, pe.Artifact)
	assert.Contains(t, err.Error(), "failed to write requests")
}
