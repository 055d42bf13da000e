package model

import "errors"

// Sentinel kinds for record boundary errors.
var (
	ErrDecode        = errors.New("record decode failed")
	ErrInvalidRecord = errors.New("invalid record")
)
