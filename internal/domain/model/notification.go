package model

import "time"

// Notification levels, matching the toast kinds of the front end.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
	LevelWarning = "warning"
)

// Notification is a fire-and-forget, user-facing message.
type Notification struct {
	ID        string    `json:"-"`
	UserID    string    `json:"userId"`
	Level     string    `json:"type"`
	Message   string    `json:"message"`
	EventID   string    `json:"eventId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}
