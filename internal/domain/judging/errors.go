package judging

import "errors"

// Sentinel kinds for judging operations. Authorization failures wrap
// auth.ErrForbidden and auth.ErrUnauthenticated.
var (
	ErrSessionNotFound      = errors.New("judging session not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrUnknownTeam          = errors.New("team is not part of the session")
	ErrUnknownCriterion     = errors.New("criterion is not part of the session")
	ErrInvalidStatus        = errors.New("invalid registration status")
	ErrConflict             = errors.New("results changed since the session was opened")
	ErrPersistence          = errors.New("document store unavailable")
)
