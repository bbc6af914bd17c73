package cli

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/crudbench/internal/config"
	"github.com/wesleyorama2/crudbench/internal/report"
)

func newSuiteCmd() *cobra.Command {
	var (
		configFile          string
		summaryJSON         string
		metricsTextfile     string
		verboseFirstRequest bool
	)

	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Run every endpoint of every target in a suite file",
		Long: `Load a YAML or JSON suite file and run each endpoint of each target in file
order, one run at a time. A comparison table sorted by mean latency is printed
at the end and all summaries are written to one JSON document.

Example:
  crudbench suite --config suite.yaml --summary-json results/summary.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return &config.ValidationError{Field: "config", Message: "--config is required"}
			}
			suite, err := config.LoadSuite(configFile)
			if err != nil {
				return err
			}
			runs, err := suite.Runs()
			if err != nil {
				return err
			}

			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if summaryJSON == "" {
				summaryJSON = defaultSuiteSummaryPath(suite)
			}
			return runSuite(cmd, suite, runs, suiteOutputs{
				summaryJSON:     summaryJSON,
				metricsTextfile: metricsTextfile,
				diagnostics:     verboseFirstRequest,
			}, logger)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "f", "", "Suite file (YAML or JSON)")
	cmd.Flags().StringVar(&summaryJSON, "summary-json", "", "Write all run summaries to this JSON file (default <outputDir>/summary.json)")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write all run summaries in Prometheus text format to this file")
	cmd.Flags().BoolVar(&verboseFirstRequest, "verbose-first-request", false, "Print the request details before each run")

	return cmd
}

type suiteOutputs struct {
	summaryJSON     string
	metricsTextfile string
	diagnostics     bool
}

// runSuite executes the runs sequentially. A failed run is reported and the
// suite moves on; an interrupt stops the suite after the current run.
func runSuite(cmd *cobra.Command, suite *config.SuiteConfig, runs []*config.RunConfig,
	outputs suiteOutputs, logger *zap.Logger) error {
	ctx := cmd.Context()
	console := newConsole(cmd)

	logger.Info("suite started", zap.String("suite", suite.Name), zap.Int("runs", len(runs)))

	var (
		summaries []*report.RunSummary
		errs      []error
	)
	for _, run := range runs {
		res, err := executeRun(ctx, run, console, logger, outputs.diagnostics)
		if err != nil {
			console.PrintError(err)
			errs = append(errs, err)
		}
		if res == nil {
			continue
		}
		summaries = append(summaries, res.Summary)
		if res.Summary.Interrupted {
			errs = append(errs, errInterrupted)
			break
		}
	}

	console.PrintComparison(summaries)

	if err := report.WriteSummaryJSON(outputs.summaryJSON, time.Now(), summaries); err != nil {
		console.PrintError(err)
		errs = append(errs, err)
	} else {
		console.PrintArtifact("suite summary", outputs.summaryJSON)
	}
	if outputs.metricsTextfile != "" {
		if err := report.WriteMetricsTextfile(outputs.metricsTextfile, summaries); err != nil {
			console.PrintError(err)
			errs = append(errs, err)
		} else {
			console.PrintArtifact("metrics", outputs.metricsTextfile)
		}
	}

	logger.Info("suite finished", zap.String("suite", suite.Name), zap.Int("completed", len(summaries)))
	return errors.Join(errs...)
}

func defaultSuiteSummaryPath(suite *config.SuiteConfig) string {
	dir := suite.Settings.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "summary.json")
}
