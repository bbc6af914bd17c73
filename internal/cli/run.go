package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/crudbench/internal/config"
	"github.com/wesleyorama2/crudbench/internal/engine"
	"github.com/wesleyorama2/crudbench/internal/output"
	"github.com/wesleyorama2/crudbench/internal/report"
)

// errInterrupted is returned when a signal stopped a run before its full
// volume was dispatched.
var errInterrupted = errors.New("run interrupted before all requests were sent")

// runOptions holds the raw flag values of the run command.
type runOptions struct {
	method      string
	url         string
	requests    int
	concurrency int
	data        string
	json        bool
	headers     []string
	timeout     string
	delay       string

	monitorPID      int
	monitorInterval string

	output          string
	samplesOutput   string
	summaryJSON     string
	metricsTextfile string

	progressEvery        int
	includeClientLatency bool
	verboseFirstRequest  bool
	insecure             bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load one endpoint with a fixed number of requests",
		Long: `Send exactly --requests calls to --url with at most --concurrency calls in
flight, then print latency statistics, throughput and failure counts.

Examples:
  crudbench run --url http://localhost:5000/read -n 500 -c 20
  crudbench run -X POST --url http://localhost:5000/create \
    -H "Content-Type: application/json" -d '{"name":"bench_item"}' -o create.csv
  crudbench run --url http://localhost:5000/read --monitor-pid 4242 --monitor-interval 100ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.runConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			res, err := executeRun(cmd.Context(), cfg, newConsole(cmd), logger, opts.verboseFirstRequest)
			if err != nil {
				return err
			}
			if res.Summary.Interrupted {
				return errInterrupted
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "method", "X", "GET", "HTTP method: GET, POST, PUT or DELETE")
	flags.StringVar(&opts.url, "url", "", "Target URL (required)")
	flags.IntVarP(&opts.requests, "requests", "n", config.DefaultRequests, "Total number of requests to send")
	flags.IntVarP(&opts.concurrency, "concurrency", "c", config.DefaultConcurrency, "Maximum number of requests in flight")
	flags.StringVarP(&opts.data, "data", "d", "", "Request body")
	flags.BoolVar(&opts.json, "json", false, "Send --data as a JSON payload")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "Request header 'Key: Value' (repeatable)")
	flags.StringVar(&opts.timeout, "timeout", config.DefaultTimeout.String(), "Per-request timeout (e.g. 10s, or seconds)")
	flags.StringVar(&opts.delay, "delay", "0", "Pause between consecutive requests of one worker")
	flags.IntVar(&opts.monitorPID, "monitor-pid", 0, "PID of the server process to sample for CPU and memory")
	flags.StringVar(&opts.monitorInterval, "monitor-interval", config.DefaultMonitorInterval.String(), "Resource sampling interval")
	flags.StringVarP(&opts.output, "output", "o", "", "CSV file for per-request records (.gz or .zst to compress)")
	flags.StringVar(&opts.samplesOutput, "samples-output", "", "CSV file for resource samples (default <output>.resources.csv)")
	flags.StringVar(&opts.summaryJSON, "summary-json", "", "Write the run summary as JSON to this file")
	flags.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write the run summary in Prometheus text format to this file")
	flags.IntVar(&opts.progressEvery, "progress-every", config.DefaultProgressEvery, "Report progress every N completed requests")
	flags.BoolVar(&opts.includeClientLatency, "include-client-latency", false, "Probe latency once and send it in the "+config.ClientLatencyHeader+" header")
	flags.BoolVar(&opts.verboseFirstRequest, "verbose-first-request", false, "Print the request details before the run")
	flags.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification")

	return cmd
}

// runConfig validates the flags and builds the run configuration.
func (o *runOptions) runConfig() (*config.RunConfig, error) {
	errs := &config.ValidationErrors{}

	method, err := config.ParseMethod(o.method)
	errs.Merge(err)

	if o.requests <= 0 {
		errs.Add("requests", fmt.Sprintf("must be > 0, got %d", o.requests))
	}

	headers, err := config.ParseHeaders(o.headers)
	errs.Merge(err)

	timeout, err := config.ParseDurationString(o.timeout)
	if err != nil {
		errs.Add("timeout", err.Error())
	}
	delay, err := config.ParseDurationString(o.delay)
	if err != nil {
		errs.Add("delay", err.Error())
	}
	interval, err := config.ParseDurationString(o.monitorInterval)
	if err != nil {
		errs.Add("monitor-interval", err.Error())
	}

	payload, err := o.payload(headers)
	errs.Merge(err)

	if err := errs.Err(); err != nil {
		return nil, err
	}

	cfg := &config.RunConfig{
		Method:               method,
		URL:                  o.url,
		Payload:              payload,
		Headers:              headers,
		TotalRequests:        o.requests,
		Concurrency:          o.concurrency,
		Timeout:              timeout,
		Delay:                delay,
		MonitorPID:           o.monitorPID,
		MonitorInterval:      interval,
		ProgressEvery:        o.progressEvery,
		RequestsOutput:       o.output,
		SamplesOutput:        o.samplesOutput,
		SummaryOutput:        o.summaryJSON,
		MetricsTextfile:      o.metricsTextfile,
		IncludeClientLatency: o.includeClientLatency,
		InsecureSkipVerify:   o.insecure,
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// payload picks the body variant once. --json requires valid JSON; a JSON
// Content-Type header selects JSON when the data parses and raw otherwise.
func (o *runOptions) payload(headers map[string]string) (config.Payload, error) {
	if o.data == "" {
		if o.json {
			return config.NoBody(), &config.ValidationError{Field: "data", Message: "--json requires --data"}
		}
		return config.NoBody(), nil
	}
	if o.json {
		return config.JSONPayload(o.data)
	}
	if isJSONContentType(headers) {
		if p, err := config.JSONPayload(o.data); err == nil {
			return p, nil
		}
	}
	return config.RawBody([]byte(o.data)), nil
}

func isJSONContentType(headers map[string]string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") && strings.Contains(strings.ToLower(v), "json") {
			return true
		}
	}
	return false
}

// executeRun runs one configuration and prints its summary. The result is
// returned whenever a summary exists, even together with a persistence
// error.
func executeRun(ctx context.Context, cfg *config.RunConfig, console *output.Console,
	logger *zap.Logger, diagnostics bool) (*engine.Result, error) {
	eng, err := engine.New(cfg,
		engine.WithLogger(logger),
		engine.WithProgress(console.PrintProgress),
		engine.WithBeforeLoad(func(c *config.RunConfig) {
			console.PrintHeader(c)
			if diagnostics {
				console.PrintDiagnostics(c)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	res, err := eng.Run(ctx)
	if res == nil {
		return nil, err
	}

	console.PrintSummary(res.Summary)
	if eng.Config().MonitorPID > 0 && !res.Summary.SamplesComplete {
		console.PrintWarning("resource monitor did not stop in time; samples may be incomplete")
	}
	for _, a := range res.Artifacts {
		console.PrintArtifact(artifactLabel(a.Kind), a.Path)
	}
	return res, err
}

func artifactLabel(kind string) string {
	switch kind {
	case report.ArtifactRequests:
		return "request records"
	case report.ArtifactSamples:
		return "resource samples"
	case report.ArtifactSummary:
		return "summary"
	case report.ArtifactMetrics:
		return "metrics"
	default:
		return kind
	}
}
