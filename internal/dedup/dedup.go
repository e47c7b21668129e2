// Package dedup suppresses repeated identical events within a window and
// reports them as a single "occurred N times" rollup when the window ends.
package dedup

import (
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/vigil/internal/model"
)

// Enqueuer is the ordered queue events are handed to.
type Enqueuer interface {
	Enqueue(event model.Event) bool
}

// Option configures a Register.
type Option func(*Register)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Register) { r.logger = l }
}

// entry is the cached clone for one key.
type entry struct {
	event  model.Event
	window time.Duration
	timer  *time.Timer
}

// Register caches one entry per event key. The first occurrence of a key is
// enqueued immediately; later occurrences inside the window only bump the
// cached clone's count. When the window ends a non-zero count is enqueued as
// a rollup and the window is re-armed; a zero count evicts the entry.
//
// The map, the timers and the disposed flag share one mutex, and every
// enqueue happens under it, so nothing reaches the queue after Close.
type Register struct {
	q      Enqueuer
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	disposed bool
}

// New creates a Register that hands events to q.
func New(q Enqueuer, opts ...Option) *Register {
	r := &Register{
		q:       q,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue passes event straight to the queue. Returns false after Close.
func (r *Register) Enqueue(event model.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		r.logger.Debug("registration after dispose ignored", "event", event)
		return false
	}
	return r.q.Enqueue(event)
}

// Register applies repeat suppression to event over window. A non-positive
// window degrades to Enqueue. Returns false after Close.
func (r *Register) Register(event model.Event, window time.Duration) bool {
	if window <= 0 {
		return r.Enqueue(event)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		r.logger.Debug("registration after dispose ignored", "event", event)
		return false
	}

	if ent, ok := r.entries[event.Key]; ok {
		ent.event.Update(event.Timestamp)
		return true
	}

	if !r.q.Enqueue(event) {
		return false
	}
	clone := event.Clone()
	clone.Count = 0
	clone.Window = &window
	ent := &entry{event: clone, window: window}
	key := event.Key
	ent.timer = time.AfterFunc(window, func() { r.expire(key, ent) })
	r.entries[key] = ent
	return true
}

// expire runs when an entry's window ends.
func (r *Register) expire(key string, ent *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed || r.entries[key] != ent {
		return
	}
	if ent.event.Count == 0 {
		delete(r.entries, key)
		return
	}
	r.q.Enqueue(ent.event.Rollup())
	ent.timer.Reset(ent.window)
}

// Close stops every pending timer, enqueues a rollup for each entry with a
// non-zero count and rejects further registrations. Safe to call twice.
func (r *Register) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	flushed := 0
	for key, ent := range r.entries {
		ent.timer.Stop()
		if ent.event.Count > 0 {
			r.q.Enqueue(ent.event.Rollup())
			flushed++
		}
		delete(r.entries, key)
	}
	r.disposed = true
	if flushed > 0 {
		r.logger.Debug("flushed pending rollups on close", "count", flushed)
	}
}

// Len returns the number of live entries.
func (r *Register) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Pending returns the occurrence count cached for key, and whether key has
// a live entry.
func (r *Register) Pending(key string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[key]
	if !ok {
		return 0, false
	}
	return ent.event.Count, true
}
