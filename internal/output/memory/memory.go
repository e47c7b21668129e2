// Package memory is an in-process Storage, used as the default store and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

// Option configures a memory Storage.
type Option func(*Storage)

// WithCapacity bounds the number of retained events; the oldest are dropped
// first. 0 (default) keeps everything.
func WithCapacity(n int) Option {
	return func(s *Storage) { s.capacity = n }
}

// Storage keeps events in a slice in arrival order. Safe for concurrent use.
type Storage struct {
	mu       sync.RWMutex
	events   []model.Event
	capacity int
}

// New creates an empty Storage.
func New(opts ...Option) *Storage {
	s := &Storage{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Store(_ context.Context, event model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.capacity > 0 && len(s.events) > s.capacity {
		s.events = append(s.events[:0:0], s.events[len(s.events)-s.capacity:]...)
	}
	return nil
}

func (s *Storage) Fetch(_ context.Context, req output.FetchRequest) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return output.Page(s.events, req), nil
}

// Events returns a copy of everything stored.
func (s *Storage) Events() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Event, len(s.events))
	copy(cp, s.events)
	return cp
}

// Len returns the number of stored events.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func init() {
	output.Register("memory", func(cfg output.StorageConfig) (output.Storage, error) {
		return New(WithCapacity(cfg.Capacity)), nil
	})
}
