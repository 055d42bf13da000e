package scoring

import (
	"errors"
	"strings"
)

// ErrInvalidCriteria is the kind of every authoring validation failure.
var ErrInvalidCriteria = errors.New("invalid judging criteria")

// ValidationError lists every problem found in a criteria list.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidCriteria.Error() + ": " + strings.Join(e.Problems, "; ")
}

// Unwrap lets errors.Is match ErrInvalidCriteria.
func (e *ValidationError) Unwrap() error { return ErrInvalidCriteria }
