package repository

import "github.com/okian/ecell/pkg/logger"

// Option configures a store.
type Option func(*storeOptions)

type storeOptions struct {
	logger     logger.Logger
	prefix     string
	maxRetries int
}

const (
	defaultPrefix     = "ecell"
	defaultMaxRetries = 8
)

func newStoreOptions(opts []Option) storeOptions {
	o := storeOptions{prefix: defaultPrefix, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("repository")
	}
	return o
}

// WithLogger sets the logger used for background subscription errors.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPrefix namespaces every Redis key. Ignored by the memory store.
func WithPrefix(prefix string) Option {
	return func(o *storeOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithMaxRetries bounds optimistic transaction retries of unconditional
// Redis updates that lose a race. Ignored by the memory store.
func WithMaxRetries(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}
