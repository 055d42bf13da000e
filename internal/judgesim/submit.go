package judgesim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ecell/pkg/logger"
)

// submitScores commits every cell concurrently. Cells of one session may
// arrive in any order; each targets its own (team, criterion) key.
func submitScores(ctx context.Context, config *Config, client *HTTPClient, sessionID string, cells []Cell, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting scores", logger.Int("cells", len(cells)), logger.Int("workers", config.Workers))

	var (
		submitted int64
		accepted  int64
		failed    int64
	)

	var reportMu sync.Mutex
	lastReport := time.Now()

	cellChan := make(chan Cell, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cell := range cellChan {
				if ctx.Err() != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				upd, err := client.commitScore(ctx, sessionID, cell)
				atomic.AddInt64(&submitted, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "score submission failed",
						logger.String("team", cell.TeamID), logger.String("criterion", cell.CriterionID), logger.Error(err))
				case upd.Accepted:
					atomic.AddInt64(&accepted, 1)
				}
				if config.Verbose {
					log.Debug(ctx, "score committed",
						logger.String("team", cell.TeamID), logger.String("criterion", cell.CriterionID),
						logger.Float64("value", cell.Value))
				}

				reportMu.Lock()
				if time.Since(lastReport) >= progressInterval {
					lastReport = time.Now()
					log.Info(ctx, "progress",
						logger.Int64("submitted", atomic.LoadInt64(&submitted)),
						logger.Int("total", len(cells)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
				reportMu.Unlock()
			}
		}()
	}

	go func() {
		defer close(cellChan)
		for _, cell := range cells {
			select {
			case <-ctx.Done():
				return
			case cellChan <- cell:
			}
		}
	}()

	wg.Wait()

	stats.CellsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.CellsAccepted = int(atomic.LoadInt64(&accepted))
	stats.CellsFailed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "score submission completed",
		logger.Int("accepted", stats.CellsAccepted),
		logger.Int("failed", stats.CellsFailed))
}
