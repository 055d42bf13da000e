package judgesim

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/ecell/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "judge_sim_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the judging simulator.
func ShowHelp() {
	os.Stdout.WriteString(`E-Cell Judging Simulator
========================

Opens a judging session on an event, commits a random score for every
team and criterion concurrently, saves, and verifies the ranked results
against totals computed from the submitted scores.

Usage:
  go run ./cmd/judge-sim -event <id> -token <admin token> [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -event string
        Event to judge (required)
  -token string
        Bearer token of an admin principal (default $ECELL_SIM_TOKEN)
  -workers int
        Number of concurrent score submitters (default 4)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the submitted scores to this JSON file
  -log string
        Log file for run output (default: judge_sim_TIMESTAMP.log)
  -verbose
        Log every submitted score
  -help
        Show this help message
`)
}
