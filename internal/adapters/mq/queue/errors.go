package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrClosed = errors.New("notification queue closed")
	ErrFull   = errors.New("notification queue full")
)
