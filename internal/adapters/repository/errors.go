package repository

import "errors"

// Sentinel kinds for document store errors.
var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrVersionConflict = errors.New("document version conflict")
	ErrClosed          = errors.New("store closed")
)
