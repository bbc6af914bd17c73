package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SuiteConfig runs a list of endpoints against a list of targets, one load
// run per (target, endpoint) pair, in file order.
//
// Example YAML:
//
//	name: "CRUD comparison"
//	settings:
//	  requests: 100
//	  concurrency: 10
//	  timeout: 10s
//	  outputDir: results
//	targets:
//	  - name: flask
//	    baseUrl: http://localhost:5000
//	    monitorPid: 4242
//	    endpoints:
//	      - name: create
//	        method: POST
//	        path: /create
//	        json: {name: bench_item, description: desc}
//	      - name: read
//	        method: GET
//	        path: /read
type SuiteConfig struct {
	// Name of the suite (for reporting)
	Name string `json:"name" yaml:"name"`

	// Settings are defaults for every run in the suite
	Settings SuiteSettings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Targets are the servers under test
	Targets []*TargetConfig `json:"targets" yaml:"targets"`
}

// SuiteSettings holds defaults shared by all runs of a suite.
type SuiteSettings struct {
	Requests             int               `json:"requests,omitempty" yaml:"requests,omitempty"`
	Concurrency          int               `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Timeout              Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Delay                Duration          `json:"delay,omitempty" yaml:"delay,omitempty"`
	MonitorInterval      Duration          `json:"monitorInterval,omitempty" yaml:"monitorInterval,omitempty"`
	Headers              map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	OutputDir            string            `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	Compress             bool              `json:"compress,omitempty" yaml:"compress,omitempty"`
	IncludeClientLatency bool              `json:"includeClientLatency,omitempty" yaml:"includeClientLatency,omitempty"`
	InsecureSkipVerify   bool              `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// TargetConfig is one server under test.
type TargetConfig struct {
	Name       string            `json:"name" yaml:"name"`
	BaseURL    string            `json:"baseUrl" yaml:"baseUrl"`
	MonitorPID int               `json:"monitorPid,omitempty" yaml:"monitorPid,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Endpoints  []*EndpointConfig `json:"endpoints" yaml:"endpoints"`
}

// EndpointConfig is one operation to load.
type EndpointConfig struct {
	Name        string            `json:"name" yaml:"name"`
	Method      string            `json:"method" yaml:"method"`
	Path        string            `json:"path" yaml:"path"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body        string            `json:"body,omitempty" yaml:"body,omitempty"`
	JSON        interface{}       `json:"json,omitempty" yaml:"json,omitempty"`
	Requests    int               `json:"requests,omitempty" yaml:"requests,omitempty"`
	Concurrency int               `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Timeout     Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// LoadSuite reads and parses a suite file.
func LoadSuite(path string) (*SuiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data, path)
}

// ParseSuite parses suite data. The format is taken from the extension of
// path (.json is JSON, anything else YAML). The document is checked against
// the suite schema before it is decoded.
func ParseSuite(data []byte, path string) (*SuiteConfig, error) {
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	var doc interface{}
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("failed to parse JSON suite: %v", err)}
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("failed to parse YAML suite: %v", err)}
		}
	}

	if err := validateSuiteDocument(doc); err != nil {
		return nil, err
	}

	var suite SuiteConfig
	if isJSON {
		if err := json.Unmarshal(data, &suite); err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("failed to decode JSON suite: %v", err)}
		}
	} else {
		if err := yaml.Unmarshal(data, &suite); err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("failed to decode YAML suite: %v", err)}
		}
	}

	return &suite, nil
}

// Runs expands the suite into one validated RunConfig per endpoint of every
// target, preserving file order.
func (s *SuiteConfig) Runs() ([]*RunConfig, error) {
	errs := &ValidationErrors{}
	var runs []*RunConfig

	for ti, target := range s.Targets {
		for ei, ep := range target.Endpoints {
			field := fmt.Sprintf("targets[%d].endpoints[%d]", ti, ei)
			run, err := s.buildRun(target, ep)
			if err != nil {
				errs.Add(field, err.Error())
				continue
			}
			if err := run.Validate(); err != nil {
				errs.Add(field, err.Error())
				continue
			}
			runs = append(runs, run)
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *SuiteConfig) buildRun(target *TargetConfig, ep *EndpointConfig) (*RunConfig, error) {
	payload := NoBody()
	switch {
	case ep.JSON != nil && ep.Body != "":
		return nil, fmt.Errorf("endpoint %q sets both body and json", ep.Name)
	case ep.JSON != nil:
		p, err := JSONValue(normalizeYAML(ep.JSON))
		if err != nil {
			return nil, err
		}
		payload = p
	case ep.Body != "":
		payload = RawBody([]byte(ep.Body))
	}

	requests := firstPositive(ep.Requests, s.Settings.Requests, DefaultRequests)
	run := &RunConfig{
		Name:                 fmt.Sprintf("%s_%s", target.Name, ep.Name),
		Method:               ep.Method,
		URL:                  strings.TrimRight(target.BaseURL, "/") + "/" + strings.TrimLeft(ep.Path, "/"),
		Payload:              payload,
		Headers:              MergeHeaders(s.Settings.Headers, target.Headers, ep.Headers),
		TotalRequests:        requests,
		Concurrency:          firstPositive(ep.Concurrency, s.Settings.Concurrency, DefaultConcurrency),
		Timeout:              ep.Timeout.GetDuration(s.Settings.Timeout.GetDuration(DefaultTimeout)),
		Delay:                time.Duration(s.Settings.Delay),
		MonitorPID:           target.MonitorPID,
		MonitorInterval:      s.Settings.MonitorInterval.GetDuration(DefaultMonitorInterval),
		ProgressEvery:        DefaultProgressEvery,
		IncludeClientLatency: s.Settings.IncludeClientLatency,
		InsecureSkipVerify:   s.Settings.InsecureSkipVerify,
	}

	// Every run gets its own samples file so runs against one monitored
	// target never share a path.
	ext := ".csv"
	if s.Settings.Compress {
		ext = ".csv.gz"
	}
	base := fmt.Sprintf("%s_%s_%d", target.Name, ep.Name, requests)
	if s.Settings.OutputDir != "" {
		run.RequestsOutput = filepath.Join(s.Settings.OutputDir, base+ext)
	}
	if target.MonitorPID > 0 {
		run.SamplesOutput = filepath.Join(s.Settings.OutputDir, base+".resources"+ext)
	}

	run.ApplyDefaults()
	return run, nil
}

// MergeHeaders merges header maps in order; later maps override earlier ones.
func MergeHeaders(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// normalizeYAML converts map[interface{}]interface{} values produced by some
// YAML documents into JSON-encodable maps.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return m
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
