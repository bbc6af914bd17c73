package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSuiteYAML = `
name: "CRUD comparison"
settings:
  requests: 50
  concurrency: 5
  timeout: 3s
  outputDir: results
  headers:
    User-Agent: crudbench
targets:
  - name: flask
    baseUrl: http://localhost:5000/
    monitorPid: 4242
    headers:
      X-Target: flask
    endpoints:
      - name: create
        method: post
        path: /create
        json:
          name: bench_item
          description: Benchmark item
      - name: read
        method: GET
        path: read
        requests: 10
        timeout: 1
  - name: fastapi
    baseUrl: http://localhost:8000
    endpoints:
      - name: delete
        method: DELETE
        path: /delete
        body: "id=1"
        headers:
          User-Agent: override
`

func TestParseSuite_YAML(t *testing.T) {
	suite, err := ParseSuite([]byte(testSuiteYAML), "suite.yaml")
	require.NoError(t, err)

	assert.Equal(t, "CRUD comparison", suite.Name)
	require.Len(t, suite.Targets, 2)
	assert.Equal(t, 4242, suite.Targets[0].MonitorPID)
	assert.Equal(t, 3*time.Second, time.Duration(suite.Settings.Timeout))
	assert.Equal(t, time.Second, time.Duration(suite.Targets[0].Endpoints[1].Timeout))
}

func TestSuiteConfig_Runs(t *testing.T) {
	suite, err := ParseSuite([]byte(testSuiteYAML), "suite.yml")
	require.NoError(t, err)

	runs, err := suite.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 3)

	create := runs[0]
	assert.Equal(t, "flask_create", create.Name)
	assert.Equal(t, "POST", create.Method)
	assert.Equal(t, "http://localhost:5000/create", create.URL)
	assert.Equal(t, PayloadJSON, create.Payload.Kind())
	assert.JSONEq(t, `{"name":"bench_item","description":"Benchmark item"}`, string(create.Payload.Bytes()))
	assert.Equal(t, 50, create.TotalRequests)
	assert.Equal(t, 5, create.Concurrency)
	assert.Equal(t, 3*time.Second, create.Timeout)
	assert.Equal(t, filepath.Join("results", "flask_create_50.csv"), create.RequestsOutput)
	assert.Equal(t, filepath.Join("results", "flask_create_50.resources.csv"), create.SamplesOutput)
	assert.Equal(t, "crudbench", create.Headers["User-Agent"])
	assert.Equal(t, "flask", create.Headers["X-Target"])

	read := runs[1]
	assert.Equal(t, "http://localhost:5000/read", read.URL)
	assert.Equal(t, 10, read.TotalRequests)
	assert.Equal(t, time.Second, read.Timeout)
	assert.Equal(t, PayloadNone, read.Payload.Kind())

	del := runs[2]
	assert.Equal(t, "fastapi_delete", del.Name)
	assert.Equal(t, PayloadRaw, del.Payload.Kind())
	assert.Equal(t, "override", del.Headers["User-Agent"])
	assert.Empty(t, del.SamplesOutput, "no samples without a monitor pid")
	assert.Equal(t, 0, del.MonitorPID)
}

func TestSuiteConfig_RunsCompressed(t *testing.T) {
	suite := &SuiteConfig{
		Settings: SuiteSettings{OutputDir: "out", Compress: true},
		Targets: []*TargetConfig{{
			Name:       "gin",
			BaseURL:    "http://localhost:8080",
			MonitorPID: 10,
			Endpoints:  []*EndpointConfig{{Name: "update", Method: "PUT", Path: "/update"}},
		}},
	}

	runs, err := suite.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, filepath.Join("out", "gin_update_100.csv.gz"), runs[0].RequestsOutput)
	assert.Equal(t, filepath.Join("out", "gin_update_100.resources.csv.gz"), runs[0].SamplesOutput)
}

func TestSuiteConfig_RunsMonitorWithoutOutputDir(t *testing.T) {
	suite := &SuiteConfig{
		Targets: []*TargetConfig{{
			Name:       "flask",
			BaseURL:    "http://localhost:5000",
			MonitorPID: 1,
			Endpoints: []*EndpointConfig{
				{Name: "create", Method: "POST", Path: "/create"},
				{Name: "read", Method: "GET", Path: "/read"},
			},
		}},
	}

	runs, err := suite.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Empty(t, runs[0].RequestsOutput)
	assert.Equal(t, "flask_create_100.resources.csv", runs[0].SamplesOutput)
	assert.Equal(t, "flask_read_100.resources.csv", runs[1].SamplesOutput)
	assert.NotEqual(t, runs[0].SamplesOutput, runs[1].SamplesOutput)
	assert.Equal(t, DefaultProgressEvery, runs[0].ProgressEvery)
}

func TestSuiteConfig_RunsRejectsBodyAndJSON(t *testing.T) {
	suite := &SuiteConfig{
		Targets: []*TargetConfig{{
			Name:    "flask",
			BaseURL: "http://localhost:5000",
			Endpoints: []*EndpointConfig{{
				Name: "create", Method: "POST", Path: "/create",
				Body: "x", JSON: map[string]interface{}{"a": 1},
			}},
		}},
	}

	_, err := suite.Runs()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "targets[0].endpoints[0]")
}

func TestParseSuite_JSON(t *testing.T) {
	data := `{
		"targets": [{
			"name": "express",
			"baseUrl": "http://localhost:3000",
			"endpoints": [{"name": "read", "method": "GET", "path": "/read", "timeout": 2}]
		}]
	}`

	suite, err := ParseSuite([]byte(data), "suite.json")
	require.NoError(t, err)
	require.Len(t, suite.Targets, 1)
	assert.Equal(t, 2*time.Second, time.Duration(suite.Targets[0].Endpoints[0].Timeout))
}

func TestParseSuite_SchemaErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		contains string
	}{
		{
			name:     "missing targets",
			data:     "name: empty\n",
			contains: "targets",
		},
		{
			name: "bad method",
			data: `
targets:
  - name: flask
    baseUrl: http://localhost:5000
    endpoints:
      - name: patch
        method: PATCH
        path: /x
`,
			contains: "targets.0.endpoints.0.method",
		},
		{
			name: "unknown field",
			data: `
targets:
  - name: flask
    baseUrl: http://localhost:5000
    endpoints:
      - name: read
        method: GET
        path: /read
        retries: 3
`,
			contains: "retries",
		},
		{
			name: "zero requests",
			data: `
settings:
  requests: 0
targets:
  - name: flask
    baseUrl: http://localhost:5000
    endpoints:
      - {name: read, method: GET, path: /read}
`,
			contains: "settings.requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.data), "suite.yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestParseSuite_Malformed(t *testing.T) {
	_, err := ParseSuite([]byte("targets: [unclosed"), "suite.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = ParseSuite([]byte("{"), "suite.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSuiteYAML), 0o644))

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Len(t, suite.Targets, 2)

	_, err = LoadSuite(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration_Unmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"250ms"`)))
	assert.Equal(t, 250*time.Millisecond, time.Duration(d))

	require.NoError(t, d.UnmarshalJSON([]byte(`1.5`)))
	assert.Equal(t, 1500*time.Millisecond, time.Duration(d))

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	assert.Equal(t, 5*time.Second, Duration(0).GetDuration(5*time.Second))
}
