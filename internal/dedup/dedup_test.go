package dedup

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/vigil/internal/model"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
	closed bool
}

func (r *recorder) Enqueue(e model.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.events = append(r.events, e)
	return true
}

func (r *recorder) snapshot() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]model.Event, len(r.events))
	copy(cp, r.events)
	return cp
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func event(t *testing.T, title string) model.Event {
	t.Helper()
	e, err := model.NewEvent("host-1", "billing", "db", model.SeverityNotify, title, model.NewText("connection reset"), nil)
	require.NoError(t, err)
	return e
}

const window = 80 * time.Millisecond

func TestRepeatsWithinWindowRollUp(t *testing.T) {
	q := &recorder{}
	r := New(q)
	defer r.Close()

	for i := 0; i < 5; i++ {
		require.True(t, r.Register(event(t, "reset"), window))
	}

	// Only the first occurrence is enqueued immediately.
	require.Equal(t, 1, q.len())
	n, ok := r.Pending("host-1:billing:db:reset")
	require.True(t, ok)
	assert.Equal(t, 4, n)

	require.Eventually(t, func() bool { return q.len() == 2 }, time.Second, 5*time.Millisecond)
	rollup := q.snapshot()[1]
	assert.Equal(t, 4, rollup.Count)
	assert.Equal(t, "connection reset (occurred 4 times in 80ms)", rollup.Description.String())
	require.NotNil(t, rollup.Window)
	assert.Equal(t, window, *rollup.Window)

	// The next window is quiet: the entry is evicted and nothing else is sent.
	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * window)
	assert.Equal(t, 2, q.len())
}

func TestSingleOccurrenceEvictedWithoutRollup(t *testing.T) {
	q := &recorder{}
	r := New(q)
	defer r.Close()

	r.Register(event(t, "reset"), window)
	require.Equal(t, 1, r.Len())

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, q.len())
}

func TestWindowRearmsAfterRollup(t *testing.T) {
	q := &recorder{}
	r := New(q)
	defer r.Close()

	r.Register(event(t, "reset"), window)
	r.Register(event(t, "reset"), window)
	require.Eventually(t, func() bool { return q.len() == 2 }, time.Second, 5*time.Millisecond)

	// Still cached: the next call inside the re-armed window is suppressed.
	require.True(t, r.Register(event(t, "reset"), window))
	require.True(t, r.Register(event(t, "reset"), window))
	assert.Equal(t, 2, q.len())

	require.Eventually(t, func() bool { return q.len() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, q.snapshot()[2].Count)
}

func TestDistinctKeysIndependent(t *testing.T) {
	q := &recorder{}
	r := New(q)
	defer r.Close()

	r.Register(event(t, "reset"), window)
	r.Register(event(t, "timeout"), window)
	r.Register(event(t, "reset"), window)

	assert.Equal(t, 2, q.len())
	assert.Equal(t, 2, r.Len())
}

func TestCloseFlushesPositiveCounts(t *testing.T) {
	q := &recorder{}
	r := New(q)

	r.Register(event(t, "reset"), time.Hour)
	for i := 0; i < 3; i++ {
		r.Register(event(t, "reset"), time.Hour)
	}
	r.Register(event(t, "quiet"), time.Hour)
	require.Equal(t, 2, q.len())

	r.Close()

	events := q.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, 3, events[2].Count)
	assert.True(t, strings.HasSuffix(events[2].Key, ":reset"))
	assert.Equal(t, 0, r.Len())

	assert.False(t, r.Register(event(t, "reset"), time.Hour))
	assert.False(t, r.Enqueue(event(t, "late")))
	assert.Equal(t, 3, q.len())

	r.Close()
	assert.Equal(t, 3, q.len())
}

func TestNonPositiveWindowEnqueuesImmediately(t *testing.T) {
	q := &recorder{}
	r := New(q)
	defer r.Close()

	r.Register(event(t, "reset"), 0)
	r.Register(event(t, "reset"), 0)
	assert.Equal(t, 2, q.len())
	assert.Equal(t, 0, r.Len())
}

func TestConcurrentRegistrations(t *testing.T) {
	q := &recorder{}
	r := New(q)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Register(event(t, "reset"), time.Hour)
			}
		}()
	}
	wg.Wait()
	r.Close()

	events := q.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, 399, events[1].Count)
}
