// Package service wires the judging engine to its store, notification
// pipeline and auth provider, and implements the HTTP API dependencies.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/ecell/internal/adapters/mq/queue"
	"github.com/okian/ecell/internal/adapters/mq/worker"
	"github.com/okian/ecell/internal/adapters/repository"
	"github.com/okian/ecell/internal/config"
	"github.com/okian/ecell/internal/domain/auth"
	"github.com/okian/ecell/internal/domain/judging"
	"github.com/okian/ecell/pkg/logger"
	"github.com/okian/ecell/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// ErrNotStarted is returned by accessors used before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns the long-lived components of the judging service.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store    repository.Store
	ownStore bool
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	engine   *judging.Engine
	provider *auth.Provider

	started     bool
	cancel      context.CancelFunc
	stopWorkers context.CancelFunc
	sweeper     sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore injects a document store instead of building one from the
// configured backend. The caller keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting judging service...", logger.String("store", s.cfg.StoreBackend))

	if s.store == nil {
		store, err := openStore(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.store = store
		s.ownStore = true
	}

	provider, err := auth.NewProvider(principals(s.cfg.APITokens))
	if err != nil {
		s.closeOwnStore()
		return fmt.Errorf("api tokens: %w", err)
	}
	s.provider = provider

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.NotifyQueueSize))
	sinks := []worker.Sink{
		worker.NewLogSink(logger.Get().Named("notifications")),
		worker.NewStoreSink(s.store),
	}
	s.pool = worker.NewPool(s.cfg.NotifyWorkerCount, s.queue, sinks)

	// Workers outlive the sweeper: Stop drains the queue before cancelling them.
	workCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWorkers = stopWorkers
	s.pool.Start(workCtx)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.engine = judging.NewEngine(s.store,
		judging.WithNotifier(queue.NewNotifier(s.queue, logger.Get().Named("notifier"))),
		judging.WithDefaultCriteria(s.cfg.Criteria()),
		judging.WithWeightTolerance(s.cfg.WeightTolerance),
		judging.WithLastWriteWins(s.cfg.LastWriteWins),
		judging.WithSessionTTL(time.Duration(s.cfg.SessionTTLSeconds)*time.Second),
	)
	s.sweeper.Add(1)
	go func() {
		defer s.sweeper.Done()
		s.engine.RunSweeper(runCtx)
	}()

	s.started = true
	s.logger.Info(ctx, "judging service started",
		logger.Int("notify_workers", s.cfg.NotifyWorkerCount),
		logger.Int("notify_queue", s.cfg.NotifyQueueSize),
		logger.Int("api_tokens", len(s.cfg.APITokens)),
		logger.Bool("last_write_wins", s.cfg.LastWriteWins),
	)
	return nil
}

// Stop shuts the components down. Pending notifications are drained
// before the store is closed.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping judging service...")

	s.cancel()
	s.sweeper.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "notification workers did not drain", logger.Error(err))
	}
	s.stopWorkers()
	s.closeOwnStore()

	s.started = false
	s.logger.Info(ctx, "judging service stopped")
}

func (s *Service) closeOwnStore() {
	if !s.ownStore || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store failed", logger.Error(err))
	}
	s.store = nil
	s.ownStore = false
}

// Engine returns the judging engine.
func (s *Service) Engine() (*judging.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

// Authenticate resolves a bearer token against the configured tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	s.mu.RLock()
	provider := s.provider
	s.mu.RUnlock()
	if provider == nil {
		return auth.Principal{}, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, ErrNotStarted)
	}
	return provider.Authenticate(ctx, token)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"storeBackend":  s.cfg.StoreBackend,
		"workerCount":   s.cfg.NotifyWorkerCount,
		"queueCapacity": s.cfg.NotifyQueueSize,
		"lastWriteWins": s.cfg.LastWriteWins,
	}

	if s.started {
		sessions := s.engine.Sessions().Len()
		queueLen := s.queue.Len()
		stats["activeSessions"] = sessions
		stats["queueLength"] = queueLen

		metrics.UpdateActiveSessions(sessions)
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	l := logger.Get().Named("store")
	switch cfg.StoreBackend {
	case config.BackendRedis:
		store, err := repository.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB,
			repository.WithLogger(l), repository.WithPrefix(cfg.RedisPrefix))
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemoryStore(repository.WithLogger(l)), nil
	}
}

func principals(tokens map[string]config.TokenConfig) map[string]auth.Principal {
	out := make(map[string]auth.Principal, len(tokens))
	for token, t := range tokens {
		out[token] = auth.Principal{UID: t.UID, Email: t.Email, Role: t.Role}
	}
	return out
}
