// Package types contains the read shapes returned by the judging engine.
package types

import (
	"time"

	"github.com/okian/ecell/internal/domain/model"
)

// Standing is one ranked row of an event's results.
type Standing struct {
	Rank       int                `json:"rank"`
	TeamID     string             `json:"teamId"`
	TeamName   string             `json:"teamName,omitempty"`
	Scores     map[string]float64 `json:"scores"`
	TotalScore float64            `json:"totalScore"`
}

// Results is the ranked view of an event's persisted results array.
type Results struct {
	EventID   string            `json:"eventId"`
	EventName string            `json:"eventName,omitempty"`
	Version   int64             `json:"version"`
	Criteria  []model.Criterion `json:"criteria"`
	// DefaultCriteria is set when the event has no criteria of its own.
	DefaultCriteria bool       `json:"defaultCriteria"`
	MaxTotal        float64    `json:"maxTotal"`
	Standings       []Standing `json:"standings"`
}

// Input is the entry state of one score cell.
type Input struct {
	Text     string  `json:"text"`
	Value    float64 `json:"value"`
	MaxScore float64 `json:"maxScore"`
}

// SessionTeam is one team of a judging session with its live total.
type SessionTeam struct {
	TeamID     string           `json:"teamId"`
	TeamName   string           `json:"teamName"`
	Inputs     map[string]Input `json:"inputs"`
	TotalScore float64          `json:"totalScore"`
}

// SessionView is a snapshot of a judging session.
type SessionView struct {
	ID          string            `json:"id"`
	EventID     string            `json:"eventId"`
	EventName   string            `json:"eventName,omitempty"`
	Owner       string            `json:"owner"`
	BaseVersion int64             `json:"baseVersion"`
	OpenedAt    time.Time         `json:"openedAt"`
	Criteria    []model.Criterion `json:"criteria"`
	Teams       []SessionTeam     `json:"teams"`
	Standings   []Standing        `json:"standings"`
}

// ScoreUpdate reports the outcome of one score change or commit.
type ScoreUpdate struct {
	TeamID      string  `json:"teamId"`
	CriterionID string  `json:"criterionId"`
	Accepted    bool    `json:"accepted"`
	Input       Input   `json:"input"`
	TotalScore  float64 `json:"totalScore"`
}
