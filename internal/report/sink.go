package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Artifact names used in PersistError.
const (
	ArtifactRequests = "requests"
	ArtifactSamples  = "samples"
	ArtifactSummary  = "summary"
	ArtifactMetrics  = "metrics"
)

// PersistError reports that one output artifact could not be written.
// Statistics already computed stay valid.
type PersistError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to write %s to %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Sink is the persistence boundary for the two record streams.
type Sink interface {
	WriteRequests(records []RequestRecord) error
	WriteSamples(records []SampleRecord) error
}

// CSVSink writes each record stream to its own CSV file. A path ending in
// .gz is gzip-compressed and one ending in .zst is zstd-compressed. An empty
// path disables that stream; an empty sample stream writes no file.
type CSVSink struct {
	RequestsPath string
	SamplesPath  string
}

// NewCSVSink returns a sink writing to the given paths.
func NewCSVSink(requestsPath, samplesPath string) *CSVSink {
	return &CSVSink{RequestsPath: requestsPath, SamplesPath: samplesPath}
}

// WriteRequests implements Sink.
func (s *CSVSink) WriteRequests(records []RequestRecord) error {
	if s.RequestsPath == "" {
		return nil
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	if err := writeCSV(s.RequestsPath, RequestHeader, rows); err != nil {
		return &PersistError{Artifact: ArtifactRequests, Path: s.RequestsPath, Err: err}
	}
	return nil
}

// WriteSamples implements Sink.
func (s *CSVSink) WriteSamples(records []SampleRecord) error {
	if s.SamplesPath == "" || len(records) == 0 {
		return nil
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	if err := writeCSV(s.SamplesPath, SampleHeader, rows); err != nil {
		return &PersistError{Artifact: ArtifactSamples, Path: s.SamplesPath, Err: err}
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	out, closeOut, err := compressor(path, f)
	if err != nil {
		return err
	}

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return closeOut()
}

// compressor wraps f according to the extension of path.
func compressor(path string, f io.Writer) (io.Writer, func() error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zw := gzip.NewWriter(f)
		return zw, zw.Close, nil
	case ".zst":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return nil, nil, err
		}
		return zw, zw.Close, nil
	default:
		return f, func() error { return nil }, nil
	}
}
