package repository

import (
	"context"
	"sync"

	"github.com/okian/ecell/pkg/logger"
	"github.com/okian/ecell/pkg/metrics"
)

// subscription delivers snapshots on its own goroutine. Change signals are
// coalesced: a burst of writes while a snapshot is being delivered yields
// one more snapshot, not one per write.
type subscription struct {
	collection string
	filters    []Filter
	fn         func([]Document)
	fetch      func(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	log        logger.Logger

	dirty  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func newSubscription(ctx context.Context, s Store, collection string, filters []Filter, fn func([]Document), log logger.Logger) *subscription {
	ctx, cancel := context.WithCancel(ctx)
	return &subscription{
		collection: collection,
		filters:    filters,
		fn:         fn,
		fetch:      s.Fetch,
		log:        log,
		dirty:      make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// notify marks the subscription dirty without blocking.
func (s *subscription) notify() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.done)
	s.notify()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
			docs, err := s.fetch(s.ctx, s.collection, s.filters...)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				metrics.RecordErrorByComponent("repository", "subscribe_fetch")
				s.log.Warn(s.ctx, "subscription fetch failed",
					logger.String("collection", s.collection), logger.Error(err))
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.fn(docs)
		}
	}
}

// stop is safe to call from inside fn.
func (s *subscription) stop() {
	s.once.Do(s.cancel)
}
