package worker

import (
	"context"
	"fmt"

	"github.com/okian/ecell/internal/adapters/repository"
	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/pkg/logger"
)

// Sink is one delivery target for notifications.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n model.Notification) error
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink logging through l.
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{log: l}
}

func (s *LogSink) Name() string { return "log" }

// Deliver logs n at a level matching its kind.
func (s *LogSink) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	fields := []logger.Field{
		logger.String("user", n.UserID),
		logger.String("type", n.Level),
	}
	if n.EventID != "" {
		fields = append(fields, logger.String("event", n.EventID))
	}
	switch n.Level {
	case model.LevelError:
		s.log.Error(ctx, n.Message, fields...)
	case model.LevelWarning:
		s.log.Warn(ctx, n.Message, fields...)
	default:
		s.log.Info(ctx, n.Message, fields...)
	}
	return nil
}

// Creator is the part of the document store the StoreSink needs.
type Creator interface {
	Create(ctx context.Context, collection, id string, data map[string]any) (repository.Document, error)
}

// StoreSink persists notifications in the notifications collection, where
// the notification center reads them.
type StoreSink struct {
	store Creator
}

// NewStoreSink creates a sink writing to store.
func NewStoreSink(store Creator) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

// Deliver stores n as a new document.
func (s *StoreSink) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	fields, err := model.Fields(n)
	if err != nil {
		return err
	}
	if _, err := s.store.Create(ctx, model.CollectionNotifications, n.ID, fields); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}
