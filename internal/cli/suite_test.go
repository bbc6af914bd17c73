package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/crudbench/internal/config"
)

func TestSuiteCommand(t *testing.T) {
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer fast.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	}))
	defer slow.Close()

	dir := t.TempDir()
	suite := fmt.Sprintf(`
name: comparison
settings:
  requests: 4
  concurrency: 2
  outputDir: %s
targets:
  - name: slow
    baseUrl: %s
    endpoints:
      - name: read
        method: GET
        path: /read
  - name: fast
    baseUrl: %s
    endpoints:
      - name: read
        method: GET
        path: /read
`, dir, slow.URL, fast.URL)
	suitePath := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(suite), 0o644))

	out, err := execute(t, "suite", "--config", suitePath, "--no-color")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "slow_read_4.csv"))
	assert.FileExists(t, filepath.Join(dir, "fast_read_4.csv"))

	idx := strings.Index(out, "Comparison")
	require.GreaterOrEqual(t, idx, 0)
	table := out[idx:]
	assert.Less(t, strings.Index(table, "fast_read"), strings.Index(table, "slow_read"), "sorted by mean latency")

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var doc struct {
		Runs []struct {
			Name  string `json:"name"`
			Total int    `json:"total"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Runs, 2)
	assert.Equal(t, "slow_read", doc.Runs[0].Name)
	assert.Equal(t, 4, doc.Runs[1].Total)
}

func TestSuiteCommand_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("name: x\ntargets: []\n"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing config flag", args: []string{"suite"}},
		{name: "schema violation", args: []string{"suite", "--config", invalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestSuiteCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "suite", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, config.ErrInvalidConfig))
}
