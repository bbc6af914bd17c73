package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/crudbench/internal/config"
	"github.com/wesleyorama2/crudbench/internal/logging"
	"github.com/wesleyorama2/crudbench/internal/output"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "crudbench",
		Short:   "Load generator and latency benchmark for HTTP CRUD services",
		Version: version,
		Long: `crudbench sends a fixed number of HTTP requests to one endpoint with
bounded concurrency, measures the latency of every call, optionally samples
the CPU and memory of the server process, and reports latency percentiles,
throughput and failure counts.

Single run:
  crudbench run -X POST --url http://localhost:5000/create \
    -d '{"name":"bench_item"}' --json -n 1000 -c 50 -o create.csv

Suite of targets and endpoints:
  crudbench suite --config suite.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	cmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "console", "Log format: console or json")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Disable live progress output, show only final summary")

	// Bad flags are configuration errors, reported before any network activity.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.ValidationError{Message: err.Error()}
	})

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSuiteCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running load;
// calls in flight finish and the partial result is still reported.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newLogger builds the logger selected by the persistent flags.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	logger, err := logging.New(level, format)
	if err != nil {
		return nil, &config.ValidationError{Field: "log", Message: err.Error()}
	}
	return logger, nil
}

// newConsole builds the console writing to the command's output.
func newConsole(cmd *cobra.Command) *output.Console {
	noColor, _ := cmd.Flags().GetBool("no-color")
	quiet, _ := cmd.Flags().GetBool("quiet")

	return output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: noColor,
		Quiet:   quiet,
	})
}
