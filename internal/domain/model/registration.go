package model

import "time"

// Registration statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Member is one participant of a team.
type Member struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	RollNumber string `json:"rollNumber"`
}

// Registration is a team registered for an event. In judging it is the Team.
type Registration struct {
	ID               string    `json:"-"`
	EventID          string    `json:"eventId" validate:"required"`
	TeamName         string    `json:"teamName" validate:"required"`
	Members          []Member  `json:"members" validate:"dive"`
	Status           string    `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	RegistrationDate time.Time `json:"registrationDate"`
}

// TeamSize is the number of members.
func (r *Registration) TeamSize() int {
	return len(r.Members)
}

// ValidStatus reports whether s is a known registration status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}
