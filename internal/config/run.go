// Package config holds the typed configuration of a load run and the
// parsing and validation that produce it.
//
// Everything in this package runs before any network activity: a value that
// passes Validate can be handed straight to the engine.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultRequests           = 100
	DefaultConcurrency        = 10
	DefaultTimeout            = 10 * time.Second
	DefaultMonitorInterval    = 500 * time.Millisecond
	DefaultMonitorJoinTimeout = 2 * time.Second
	DefaultProgressEvery      = 100
)

// ClientLatencyHeader carries the pre-run latency probe result to the server.
const ClientLatencyHeader = "x-client-latency-ms"

// RunConfig describes one load run against a single HTTP operation.
type RunConfig struct {
	// Name labels the run in summaries and metrics
	Name string `json:"name,omitempty"`

	// Method is one of GET, POST, PUT, DELETE
	Method string `json:"method"`

	// URL is the absolute target URL
	URL string `json:"url"`

	// Payload is the request body variant
	Payload Payload `json:"-"`

	// Headers are sent with every request
	Headers map[string]string `json:"headers,omitempty"`

	// TotalRequests is the exact number of calls to issue
	TotalRequests int `json:"totalRequests"`

	// Concurrency is the maximum number of calls in flight
	Concurrency int `json:"concurrency"`

	// Timeout bounds each individual call
	Timeout time.Duration `json:"timeout"`

	// Delay is a fixed pause between consecutive calls of one worker
	Delay time.Duration `json:"delay,omitempty"`

	// MonitorPID is the process to sample; 0 disables monitoring
	MonitorPID int `json:"monitorPid,omitempty"`

	// MonitorInterval is the sampling period
	MonitorInterval time.Duration `json:"monitorInterval,omitempty"`

	// MonitorJoinTimeout bounds the wait for the monitor loop to exit
	MonitorJoinTimeout time.Duration `json:"monitorJoinTimeout,omitempty"`

	// ProgressEvery emits a progress signal every N completions; 0 disables it
	ProgressEvery int `json:"progressEvery,omitempty"`

	// Output destinations; empty disables the artifact
	RequestsOutput  string `json:"requestsOutput,omitempty"`
	SamplesOutput   string `json:"samplesOutput,omitempty"`
	SummaryOutput   string `json:"summaryOutput,omitempty"`
	MetricsTextfile string `json:"metricsTextfile,omitempty"`

	// IncludeClientLatency sends a pre-run probe latency as a header
	IncludeClientLatency bool `json:"includeClientLatency,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty"`
}

// ApplyDefaults fills unset fields and normalises the method.
//
// A concurrency below 1 is clamped to 1. Only zero durations are defaulted,
// so negative values still fail Validate. When monitoring is enabled and no
// samples destination is set, samples go next to the request records.
func (c *RunConfig) ApplyDefaults() {
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MonitorInterval == 0 {
		c.MonitorInterval = DefaultMonitorInterval
	}
	if c.MonitorJoinTimeout == 0 {
		c.MonitorJoinTimeout = DefaultMonitorJoinTimeout
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("%s %s", c.Method, c.URL)
	}
	if c.MonitorPID > 0 && c.SamplesOutput == "" {
		base := c.RequestsOutput
		if base == "" {
			base = "results"
		}
		c.SamplesOutput = base + ".resources.csv"
	}
}

// Validate checks the configuration and returns every problem found.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	if _, err := ParseMethod(c.Method); err != nil {
		errs.Merge(err)
	}
	validateURL(c.URL, errs)

	if c.TotalRequests < 0 {
		errs.Add("totalRequests", "total requests must be >= 0")
	}
	if c.Timeout < 0 {
		errs.Add("timeout", "timeout must be > 0")
	}
	if c.Delay < 0 {
		errs.Add("delay", "delay must be >= 0")
	}
	if c.MonitorInterval < 0 {
		errs.Add("monitorInterval", "monitor interval must be > 0")
	}
	if c.MonitorJoinTimeout < 0 {
		errs.Add("monitorJoinTimeout", "monitor join timeout must be >= 0")
	}
	if c.ProgressEvery < 0 {
		errs.Add("progressEvery", "progress interval must be >= 0")
	}
	if c.MonitorPID < 0 {
		errs.Add("monitorPid", "monitor pid must be > 0")
	}
	for key := range c.Headers {
		if strings.TrimSpace(key) == "" {
			errs.Add("headers", "header names must not be empty")
		}
	}
	return errs.Err()
}

// ContentType returns the effective Content-Type: an explicit header wins over
// the type implied by the payload.
func (c *RunConfig) ContentType() string {
	if v, ok := hasHeader(c.Headers, "Content-Type"); ok {
		return v
	}
	return c.Payload.ContentType()
}

// SetClientLatency records a probe result unless the header was set explicitly.
func (c *RunConfig) SetClientLatency(d time.Duration) {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	if _, ok := hasHeader(c.Headers, ClientLatencyHeader); ok {
		return
	}
	c.Headers[ClientLatencyHeader] = fmt.Sprintf("%.2f", float64(d)/float64(time.Millisecond))
}

func validateURL(raw string, errs *ValidationErrors) {
	if strings.TrimSpace(raw) == "" {
		errs.Add("url", "url is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		errs.Add("url", fmt.Sprintf("invalid url: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("url", fmt.Sprintf("url scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		errs.Add("url", "url must include a host")
	}
}
