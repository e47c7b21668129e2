// Package queue is the single ordered hand-off point between event producers
// and the storage/notification pipeline.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/vigil/internal/model"
)

const defaultDrainTimeout = 5 * time.Second

// Handler processes one dequeued event.
type Handler interface {
	Handle(ctx context.Context, event model.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event model.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event model.Event) error { return f(ctx, event) }

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for per-item failures.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithDrainTimeout bounds how long Close waits when its context has no
// deadline. Default: 5s.
func WithDrainTimeout(d time.Duration) Option {
	return func(q *Queue) { q.drainTimeout = d }
}

// WithOnError sets a callback invoked after a handler error or panic is
// logged.
func WithOnError(f func(model.Event, error)) Option {
	return func(q *Queue) { q.errFunc = f }
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Name      string
	Enqueued  int64
	Processed int64
	Failed    int64
	Pending   int64
}

// Queue is an unbounded FIFO drained by exactly one goroutine. Enqueue never
// blocks. A handler error or panic on one event is logged and the consumer
// moves on to the next.
type Queue struct {
	name         string
	handler      Handler
	logger       *slog.Logger
	errFunc      func(model.Event, error)
	drainTimeout time.Duration

	mu     sync.Mutex
	items  []model.Event
	closed bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	enqueued  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	pending   atomic.Int64
}

// New creates a Queue named name and starts its consumer goroutine.
func New(name string, h Handler, opts ...Option) *Queue {
	q := &Queue{
		name:         name,
		handler:      h,
		logger:       slog.Default(),
		drainTimeout: defaultDrainTimeout,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("queue", name)
	go q.drain()
	return q
}

// Enqueue appends an event. It returns false once the queue is closed.
func (q *Queue) Enqueue(event model.Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, event)
	q.enqueued.Add(1)
	q.pending.Add(1)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting events and waits for the backlog to drain. The wait
// is bounded by ctx, or by the drain timeout when ctx has no deadline.
func (q *Queue) Close(ctx context.Context) error {
	var err error
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		select {
		case q.wake <- struct{}{}:
		default:
		}

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, q.drainTimeout)
			defer cancel()
		}
		select {
		case <-q.done:
		case <-ctx.Done():
			q.logger.Warn("queue drain timed out", "pending", q.pending.Load())
			err = fmt.Errorf("queue %s: drain: %w", q.name, ctx.Err())
		}
	})
	return err
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Name:      q.name,
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Pending:   q.pending.Load(),
	}
}

// Done is closed once the consumer has handled its last event.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// drain takes the whole backlog at once and hands items to the handler in
// arrival order.
func (q *Queue) drain() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		batch := q.items
		q.items = nil
		q.mu.Unlock()

		for _, event := range batch {
			q.process(event)
		}
	}
}

func (q *Queue) process(event model.Event) {
	defer q.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			q.fail(event, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := q.handler.Handle(context.Background(), event); err != nil {
		q.fail(event, err)
		return
	}
	q.processed.Add(1)
}

func (q *Queue) fail(event model.Event, err error) {
	q.failed.Add(1)
	q.logger.Error("event handler failed", "event", event, "error", err)
	if q.errFunc != nil {
		q.errFunc(event, err)
	}
}
