package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ecell/pkg/logger"
)

// Notifier is the fire-and-forget front of the queue. Dropped notifications
// are logged, never returned.
type Notifier struct {
	queue Queue
	log   logger.Logger
	now   func() time.Time
}

// NewNotifier creates a Notifier enqueueing into q.
func NewNotifier(q Queue, l logger.Logger) *Notifier {
	return &Notifier{queue: q, log: l, now: time.Now}
}

// Notify stamps n with an id and creation time and enqueues it.
func (n *Notifier) Notify(ctx context.Context, note Notification) { //nolint:gocritic // hugeParam
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = n.now().UTC()
	}
	if err := n.queue.Enqueue(ctx, note); err != nil {
		n.log.Warn(ctx, "notification dropped",
			logger.String("user", note.UserID),
			logger.String("message", note.Message),
			logger.Error(err))
	}
}
