package testsessions

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/cohort/pkg/logger"
)

// Run executes the complete session test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting cohort session test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("visitors", config.NumVisitors),
		logger.String("experiment", config.Experiment),
		logger.String("competitor", config.Competitor),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Float64("tolerance", config.Tolerance),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate visitor profiles
	visits, err := generateVisits(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("visit generation failed: %w", err)
	}

	// Step 3: Play visits concurrently
	results, err := runVisits(ctx, config, visits, stats)
	if err != nil {
		return fmt.Errorf("visit playback failed: %w", err)
	}

	// Step 4: Let the event pipeline settle
	logger.Get().Info(ctx, "waiting for events to be delivered")
	time.Sleep(SettleDelay)

	// Step 5: Verify assignment invariants
	if err := verifyResults(ctx, config, results, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, visitsPerSecond float64

	if stats.VisitsGenerated > 0 {
		successRate = float64(stats.VisitsCompleted) / float64(stats.VisitsGenerated) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		visitsPerSecond = float64(stats.VisitsCompleted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("visitsGenerated", stats.VisitsGenerated),
		logger.Int("visitsCompleted", stats.VisitsCompleted),
		logger.Int("visitsFailed", stats.VisitsFailed),
		logger.Int("organicVisits", stats.OrganicVisits),
		logger.Int("nonOrganicVisits", stats.NonOrganicVisits),
		logger.Int("stickyMismatches", stats.StickyMismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("visitsPerSecond", visitsPerSecond))
}
