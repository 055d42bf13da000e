package judging

import (
	"time"

	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithNotifier sets where user-facing notifications go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithDefaultCriteria sets the criteria used by events without their own.
func WithDefaultCriteria(c []model.Criterion) Option {
	return func(e *Engine) {
		if len(c) > 0 {
			e.defaults = model.NormalizeCriteria(c)
		}
	}
}

// WithWeightTolerance sets the allowed drift of a weight sum from 1.0.
func WithWeightTolerance(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.tolerance = t
		}
	}
}

// WithLastWriteWins disables the version check on save, so a save
// silently replaces results written since the session was opened.
func WithLastWriteWins(enabled bool) Option {
	return func(e *Engine) {
		e.lastWriteWins = enabled
	}
}

// WithSessionTTL sets how long an untouched session survives.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
