package judgesim

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	defaultWorkers          = 4
	defaultTimeout          = 30 * time.Second
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	progressInterval     = time.Second
	scoreDecimals        = 10
	totalTolerance       = 1e-9
)
