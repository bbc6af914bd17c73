package main

import (
	"errors"
	"os"

	"github.com/wesleyorama2/crudbench/internal/cli"
	"github.com/wesleyorama2/crudbench/internal/config"
)

// Exit codes.
const (
	exitOK          = 0
	exitRunError    = 1
	exitConfigError = 2
)

// Main is the entry point for the application
// It's exported to make it testable
func Main() int {
	return exitCode(cli.Execute())
}

// exitCode maps an error to the process exit code. A configuration error is
// distinguishable from a run that completed with failed requests, which
// exits 0.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrInvalidConfig):
		return exitConfigError
	default:
		return exitRunError
	}
}

func main() {
	os.Exit(Main())
}
