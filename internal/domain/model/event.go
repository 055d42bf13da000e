// Package model contains the typed records exchanged with the document store.
//
// Records enter the domain through the Decode* functions, which apply the
// single normalization step (weak number typing, trimming, id defaulting).
// Nothing past that boundary handles loosely typed maps.
package model

import "time"

// Collection names in the document store.
const (
	CollectionEvents          = "events"
	CollectionRegistrations   = "registrations"
	CollectionTeams           = "teams"
	CollectionJudgingCriteria = "judgingCriteria"
	CollectionCaseStudies     = "caseStudies"
	CollectionNotifications   = "notifications"
	CollectionSettings        = "settings"
)

// Event lifecycle states.
const (
	EventUpcoming  = "upcoming"
	EventOngoing   = "ongoing"
	EventCompleted = "completed"
)

// Field names written by judging operations.
const (
	FieldJudgingCriteria = "judgingCriteria"
	FieldScores          = "scores"
)

// Criterion is a named, weighted judging dimension.
type Criterion struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"maxScore"`
	Weight      float64 `json:"weight"`
}

// TeamResult is the persisted per-team row of an event's results array.
// TotalScore is derived from Scores and the criteria at save time.
type TeamResult struct {
	TeamID     string             `json:"teamId"`
	Scores     map[string]float64 `json:"scores"`
	TotalScore float64            `json:"totalScore"`
}

// RankedResult is a TeamResult with its 1-based position in the ordering.
type RankedResult struct {
	TeamResult
	Rank int `json:"rank"`
}

// Coordinator is a contact person for an event.
type Coordinator struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

// Prizes lists the prize details of an event.
type Prizes struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Third  string `json:"third"`
}

// Event is an event record with its embedded criteria and results array.
type Event struct {
	ID                   string       `json:"-"`
	Version              int64        `json:"-"`
	Name                 string       `json:"name"`
	Description          string       `json:"description"`
	EventDate            string       `json:"eventDate"`
	RegistrationDeadline string       `json:"registrationDeadline"`
	Location             string       `json:"location"`
	Department           string       `json:"department"`
	TeamSize             int          `json:"teamSize"`
	Status               string       `json:"status" validate:"omitempty,oneof=upcoming ongoing completed"`
	RegistrationCount    int          `json:"registrationCount"`
	Coordinator          Coordinator  `json:"coordinator"`
	StudentCoordinator   Coordinator  `json:"studentCoordinator"`
	PrizeDetails         Prizes       `json:"prizeDetails"`
	JudgingCriteria      []Criterion  `json:"judgingCriteria"`
	Scores               []TeamResult `json:"scores"`
	UpdatedAt            time.Time    `json:"-"`
}

// HasCriteria reports whether criteria were authored for the event.
func (e *Event) HasCriteria() bool {
	return len(e.JudgingCriteria) > 0
}

// ResultFor returns the persisted row of a team, if any.
func (e *Event) ResultFor(teamID string) (TeamResult, bool) {
	for _, r := range e.Scores {
		if r.TeamID == teamID {
			return r, true
		}
	}
	return TeamResult{}, false
}
