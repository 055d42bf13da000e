package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/ecell/internal/adapters/mq/queue"
	worker "github.com/okian/ecell/internal/adapters/mq/worker"
	"github.com/okian/ecell/internal/adapters/repository"
	model "github.com/okian/ecell/internal/domain/model"
	logging "github.com/okian/ecell/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan model.Notification
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.Notification, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan model.Notification {
	return mq.ch
}

func (mq *mockQueue) Close() error {
	close(mq.ch)
	return nil
}

type recordingSink struct {
	name string
	fail error

	mu   sync.Mutex
	seen []model.Notification
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(ctx context.Context, n model.Notification) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
	return nil
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.seen))
	for i, n := range s.seen {
		out[i] = n.Message
	}
	return out
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with two sinks", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		first := &recordingSink{name: "first"}
		second := &recordingSink{name: "second"}
		w := worker.NewInMemoryWorker(q, []worker.Sink{first, second}, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a notification is queued", func() {
			q.ch <- model.Notification{UserID: "u1", Level: model.LevelSuccess, Message: "Scores saved successfully"}

			convey.Convey("Then every sink receives it", func() {
				convey.So(waitFor(func() bool { return len(second.messages()) == 1 }), convey.ShouldBeTrue)
				convey.So(first.messages(), convey.ShouldResemble, []string{"Scores saved successfully"})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a worker whose first sink fails", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		broken := &recordingSink{name: "broken", fail: errors.New("unavailable")}
		healthy := &recordingSink{name: "healthy"}
		w := worker.NewInMemoryWorker(q, []worker.Sink{broken, healthy})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.ch <- model.Notification{Level: model.LevelError, Message: "Failed to save scores"}

		convey.Convey("Then later sinks still receive the notification", func() {
			convey.So(waitFor(func() bool { return len(healthy.messages()) == 1 }), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, nil)
		ctx, cancel := context.WithCancel(context.Background())

		stopped := make(chan struct{})
		go func() { w.Run(ctx); close(stopped) }()
		cancel()

		convey.Convey("Then Run returns", func() {
			select {
			case <-stopped:
			case <-time.After(time.Second):
				t.Fatal("worker did not stop")
			}
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := &recordingSink{name: "rec"}
		pool := worker.NewPool(3, q, []worker.Sink{sink})
		pool.Start(context.Background())

		convey.Convey("When notifications are enqueued and the pool shuts down", func() {
			for _, msg := range []string{"a", "b", "c", "d"} {
				convey.So(q.Enqueue(context.Background(), model.Notification{Message: msg}), convey.ShouldBeNil)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then pending notifications are drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.messages(), convey.ShouldHaveLength, 4)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with a default worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), nil)
		pool.Start(context.Background())

		convey.Convey("Then it can be stopped without a queue close", func() {
			pool.Stop()
			convey.So(pool, convey.ShouldNotBeNil)
		})
	})
}

func TestSinks(t *testing.T) {
	convey.Convey("Given the store sink", t, func() {
		_ = logging.Init()
		store := repository.NewMemoryStore()
		defer store.Close()
		sink := worker.NewStoreSink(store)

		n := model.Notification{
			ID:        "n-1",
			UserID:    "admin-1",
			Level:     model.LevelSuccess,
			Message:   "Judging criteria saved successfully",
			EventID:   "ev-1",
			CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		}

		convey.Convey("When a notification is delivered", func() {
			err := sink.Deliver(context.Background(), n)

			convey.Convey("Then it is stored in the notifications collection", func() {
				convey.So(err, convey.ShouldBeNil)
				doc, err := store.Get(context.Background(), model.CollectionNotifications, "n-1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(doc.Data["type"], convey.ShouldEqual, model.LevelSuccess)
				convey.So(doc.Data["userId"], convey.ShouldEqual, "admin-1")
				convey.So(doc.Data["read"], convey.ShouldEqual, false)
			})
		})
	})

	convey.Convey("Given the log sink", t, func() {
		_ = logging.Init()
		sink := worker.NewLogSink(logging.Named("notify"))

		convey.So(sink.Name(), convey.ShouldEqual, "log")
		for _, level := range []string{model.LevelError, model.LevelWarning, model.LevelInfo} {
			convey.So(sink.Deliver(context.Background(), model.Notification{Level: level, Message: "m", EventID: "e"}), convey.ShouldBeNil)
		}
	})
}
