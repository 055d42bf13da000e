// Package judgesim drives a complete judging pass against a running
// service over HTTP and checks the saved ranking against totals computed
// locally from the submitted scores.
package judgesim

import "time"

// Config holds configuration for a simulated judging pass.
type Config struct {
	BaseURL    string        // Base URL of the service
	Token      string        // Bearer token of an admin principal
	EventID    string        // Event to judge
	Workers    int           // Number of concurrent score submitters
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Optional JSON dump of the submitted scores
	LogFile    string        // Log file for run output
	Verbose    bool          // Log every submitted cell
}

// Cell is one score submitted for a (team, criterion) pair.
type Cell struct {
	TeamID      string  `json:"teamId"`
	CriterionID string  `json:"criterionId"`
	Value       float64 `json:"value"`
}

// Stats holds run statistics.
type Stats struct {
	Teams          int
	CellsGenerated int
	CellsSubmitted int
	CellsAccepted  int
	CellsFailed    int
	Standings      int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
