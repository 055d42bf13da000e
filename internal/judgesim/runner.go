package judgesim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/ecell/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// ErrNoEvent is returned when Config names no event.
var ErrNoEvent = errors.New("no event to judge")

// Run executes one complete judging pass.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if config.EventID == "" {
		return nil, ErrNoEvent
	}
	if config.Workers < 1 {
		config.Workers = defaultWorkers
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	log := logger.Get()
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(config)

	log.Info(ctx, "starting judging simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("event", config.EventID),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	if err := client.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	view, err := client.openSession(ctx, config.EventID)
	if err != nil {
		return stats, fmt.Errorf("open session: %w", err)
	}
	stats.Teams = len(view.Teams)
	log.Info(ctx, "judging session opened",
		logger.String("session", view.ID),
		logger.Int("teams", len(view.Teams)),
		logger.Int("criteria", len(view.Criteria)))

	cells := generateScores(view.Teams, view.Criteria)
	stats.CellsGenerated = len(cells)

	submitScores(ctx, config, client, view.ID, cells, stats)
	if stats.CellsFailed > 0 {
		// Leave nothing half-judged behind.
		if err := client.discard(context.WithoutCancel(ctx), view.ID); err != nil {
			log.Warn(ctx, "failed to discard session", logger.String("session", view.ID), logger.Error(err))
		}
		return stats, fmt.Errorf("%d of %d scores failed", stats.CellsFailed, len(cells))
	}

	saved, err := client.save(ctx, view.ID)
	if err != nil {
		return stats, fmt.Errorf("save: %w", err)
	}
	log.Info(ctx, "scores saved", logger.Int64("version", saved.Version))

	res, err := client.results(ctx, config.EventID)
	if err != nil {
		return stats, fmt.Errorf("results: %w", err)
	}
	stats.Standings = len(res.Standings)

	if err := verifyResults(expectedRanking(view.Teams, view.Criteria, cells), res.Standings); err != nil {
		return stats, err
	}
	log.Info(ctx, "ranking verified")

	if config.OutputFile != "" {
		if err := saveScoresToFile(config.OutputFile, cells); err != nil {
			log.Warn(ctx, "failed to save scores to file", logger.Error(err))
		} else {
			log.Info(ctx, "scores saved to file", logger.String("filename", config.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// saveScoresToFile writes the submitted cells as a JSON array.
func saveScoresToFile(filename string, cells []Cell) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cells, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, cellsPerSecond float64
	if stats.CellsSubmitted > 0 {
		acceptRate = float64(stats.CellsAccepted) / float64(stats.CellsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		cellsPerSecond = float64(stats.CellsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("teams", stats.Teams),
		logger.Int("cellsGenerated", stats.CellsGenerated),
		logger.Int("cellsSubmitted", stats.CellsSubmitted),
		logger.Int("cellsAccepted", stats.CellsAccepted),
		logger.Int("cellsFailed", stats.CellsFailed),
		logger.Int("standings", stats.Standings),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("cellsPerSecond", cellsPerSecond))
}
