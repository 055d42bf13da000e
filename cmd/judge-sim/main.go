package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/ecell/internal/judgesim"
)

// Default configuration constants.
const (
	defaultWorkers     = 4
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		eventID    = flag.String("event", "", "Event to judge")
		token      = flag.String("token", os.Getenv("ECELL_SIM_TOKEN"), "Bearer token of an admin principal")
		workers    = flag.Int("workers", defaultWorkers, "Number of concurrent score submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the submitted scores to this JSON file")
		logFile    = flag.String("log", "", "Log file for run output (default: judge_sim_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Log every submitted score")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		judgesim.ShowHelp()
		return 0
	}

	if err := judgesim.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &judgesim.Config{
		BaseURL:    *baseURL,
		Token:      *token,
		EventID:    *eventID,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := judgesim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
