package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/cohort/internal/testsessions"
)

// Default configuration constants.
const (
	defaultNumVisitors = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTolerance   = 5.0
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numVisitors = flag.Int("visitors", defaultNumVisitors, "Number of visitors to simulate")
		experiment  = flag.String("experiment", "comparison-page", "Experiment slug to exercise")
		competitor  = flag.String("competitor", "acme", "Competitor slug reported by simulated pages")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tolerance   = flag.Float64("tolerance", defaultTolerance, "Allowed deviation from expected variant shares, percent")
		logFile     = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testsessions.ShowHelp()
		return
	}

	// Setup logging
	if err := testsessions.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	// Create test configuration
	config := &testsessions.Config{
		BaseURL:     *baseURL,
		NumVisitors: *numVisitors,
		Experiment:  *experiment,
		Competitor:  *competitor,
		Workers:     *workers,
		Timeout:     *timeout,
		Tolerance:   *tolerance,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	// Run the test
	if err := testsessions.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
