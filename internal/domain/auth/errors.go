package auth

import "errors"

// Sentinel kinds for authentication and authorization failures.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidRole     = errors.New("invalid role")
)
