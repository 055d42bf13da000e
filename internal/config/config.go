// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers file and environment on top.
// - Validate is the single gate; errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/scoring"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the document store: memory or redis.
	StoreBackend string `koanf:"store_backend"`

	// RedisAddr, RedisDB and RedisPrefix configure the redis document store.
	RedisAddr   string `koanf:"redis_addr"`
	RedisDB     int    `koanf:"redis_db"`
	RedisPrefix string `koanf:"redis_prefix"`

	// NotifyQueueSize bounds the in-memory notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkerCount sets the number of notification dispatch workers.
	NotifyWorkerCount int `koanf:"notify_worker_count"`

	// RateLimitRPS and RateLimitBurst bound API throughput. RPS <= 0 disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// WeightTolerance is the allowed deviation of a criteria weight sum from 1.0.
	WeightTolerance float64 `koanf:"weight_tolerance"`

	// LastWriteWins disables the results version check on save.
	LastWriteWins bool `koanf:"last_write_wins"`

	// SessionTTLSeconds discards judging sessions idle for longer than this.
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	// DefaultCriteria is used for events that have no criteria yet.
	DefaultCriteria []CriterionConfig `koanf:"default_criteria"`

	// APITokens maps bearer tokens to principals.
	APITokens map[string]TokenConfig `koanf:"api_tokens"`
}

// CriterionConfig is the config shape of a judging criterion.
type CriterionConfig struct {
	ID          string  `koanf:"id"`
	Name        string  `koanf:"name"`
	Description string  `koanf:"description"`
	MaxScore    float64 `koanf:"max_score"`
	Weight      float64 `koanf:"weight"`
}

// TokenConfig describes the principal behind an API token.
type TokenConfig struct {
	UID   string `koanf:"uid"`
	Email string `koanf:"email"`
	Role  string `koanf:"role"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		StoreBackend:      BackendMemory,
		RedisAddr:         "localhost:6379",
		RedisPrefix:       "ecell",
		NotifyQueueSize:   1024,
		NotifyWorkerCount: 2,
		RateLimitRPS:      50,
		RateLimitBurst:    100,
		WeightTolerance:   0.01,
		SessionTTLSeconds: 4 * 60 * 60,
		DefaultCriteria:   DefaultCriteria(),
		APITokens:         map[string]TokenConfig{},
	}
}

// DefaultCriteria returns the stock judging criteria set: weights sum to 1.0
// against max scores of 10, which yields totals on a 0–10 scale.
func DefaultCriteria() []CriterionConfig {
	return []CriterionConfig{
		{ID: "innovation", Name: "Innovation & Creativity", Description: "Uniqueness and creativity of the solution", MaxScore: 10, Weight: 0.25},
		{ID: "technical", Name: "Technical Implementation", Description: "Quality and complexity of implementation", MaxScore: 10, Weight: 0.25},
		{ID: "impact", Name: "Impact & Scalability", Description: "Potential impact and ability to scale", MaxScore: 10, Weight: 0.20},
		{ID: "presentation", Name: "Presentation & Communication", Description: "Clarity and effectiveness of presentation", MaxScore: 10, Weight: 0.15},
		{ID: "feasibility", Name: "Business Feasibility", Description: "Market viability and business potential", MaxScore: 10, Weight: 0.15},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	if c.WeightTolerance <= 0 {
		return fmt.Errorf("%w: weight_tolerance must be positive", ErrInvalidConfig)
	}
	if len(c.DefaultCriteria) > 0 {
		if err := scoring.ValidateCriteria(c.Criteria(), c.WeightTolerance); err != nil {
			return fmt.Errorf("%w: default_criteria: %w", ErrInvalidConfig, err)
		}
	}
	for token, p := range c.APITokens {
		if token == "" || p.UID == "" {
			return fmt.Errorf("%w: api_tokens entries need a token and a uid", ErrInvalidConfig)
		}
	}
	return nil
}

// Criteria converts the configured default criteria into domain criteria.
func (c *Config) Criteria() []model.Criterion {
	out := make([]model.Criterion, len(c.DefaultCriteria))
	for i, d := range c.DefaultCriteria {
		out[i] = model.Criterion{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			MaxScore:    d.MaxScore,
			Weight:      d.Weight,
		}
	}
	return model.NormalizeCriteria(out)
}
