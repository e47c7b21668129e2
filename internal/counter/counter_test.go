package counter

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mustNumeric(t *testing.T, typ Type, opts ...Option) *NumericCounter {
	t.Helper()
	c, err := NewNumeric("c", typ, opts...)
	require.NoError(t, err)
	return c
}

func TestCountOfItems(t *testing.T) {
	c := mustNumeric(t, CountOfItems)
	require.NoError(t, c.Increment())
	require.NoError(t, c.IncrementBy(4))
	require.NoError(t, c.Decrement())
	c.Update()
	assert.Equal(t, 4.0, c.Value())

	require.NoError(t, c.SetRawValue(10))
	assert.Equal(t, 10.0, c.Value())
	assert.Equal(t, "10", c.String())
}

func TestCountPerSecondResetsOnSecondChange(t *testing.T) {
	clk := newFakeClock()
	c := mustNumeric(t, CountPerSecond, WithClock(clk.Now))

	for i := 0; i < 7; i++ {
		require.NoError(t, c.Increment())
	}
	c.Update()
	assert.Equal(t, 7.0, c.Value())

	clk.Advance(time.Second)
	require.NoError(t, c.Increment())
	assert.Equal(t, 1.0, c.Value())

	clk.Advance(2 * time.Second)
	c.Update()
	assert.Equal(t, 0.0, c.Value())
}

func TestAverageValue(t *testing.T) {
	c := mustNumeric(t, AverageValue)
	assert.Equal(t, 1.0, c.BaseValue())

	require.NoError(t, c.IncrementBy(10))
	require.NoError(t, c.IncrementBaseBy(2))
	c.Update()
	assert.InDelta(t, 10.0/3.0, c.Value(), 1e-9)
}

func TestPercentValue(t *testing.T) {
	c := mustNumeric(t, PercentValue)
	require.NoError(t, c.SetBaseRawValue(8))
	require.NoError(t, c.SetRawValue(2))
	assert.Equal(t, 25.0, c.Value())
	assert.Equal(t, "25%", c.String())

	require.NoError(t, c.SetBaseRawValue(0))
	assert.Equal(t, 0.0, c.Value())
}

func TestDeltaValueShowsLastDelta(t *testing.T) {
	c := mustNumeric(t, DeltaValue)
	require.NoError(t, c.IncrementBy(5))
	require.NoError(t, c.IncrementBy(3))
	assert.Equal(t, 3.0, c.Value())
	require.NoError(t, c.DecrementBy(2))
	assert.Equal(t, -2.0, c.Value())
}

func TestElapsedTime(t *testing.T) {
	clk := newFakeClock()
	c := mustNumeric(t, ElapsedTime, WithClock(clk.Now))
	c.Update()
	assert.Equal(t, 0.0, c.Value())

	require.NoError(t, c.SetRawTime(clk.Now()))
	clk.Advance(90 * time.Second)
	c.Update()
	assert.Equal(t, 90.0, c.Value())
	assert.Equal(t, "1m30s", c.String())

	assert.ErrorIs(t, c.Increment(), ErrUnsupportedOperation)
	assert.ErrorIs(t, c.DecrementBy(1), ErrUnsupportedOperation)
	assert.ErrorIs(t, c.SetRawValue(1), ErrUnsupportedOperation)
}

func TestBaseOnlyForAverageAndPercent(t *testing.T) {
	for _, typ := range []Type{CountOfItems, CountPerSecond, DeltaValue, ElapsedTime} {
		c := mustNumeric(t, typ)
		assert.ErrorIs(t, c.IncrementBase(), ErrUnsupportedOperation, typ.String())
		assert.ErrorIs(t, c.IncrementBaseBy(2), ErrUnsupportedOperation, typ.String())
		assert.ErrorIs(t, c.SetBaseRawValue(2), ErrUnsupportedOperation, typ.String())
	}
	c := mustNumeric(t, CountOfItems)
	assert.ErrorIs(t, c.SetRawTime(time.Now()), ErrUnsupportedOperation)
}

func TestNewNumericRejectsStringType(t *testing.T) {
	_, err := NewNumeric("c", StringValue)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestFuncCounterIsReadOnly(t *testing.T) {
	n := 1.0
	c := NewFunc("queue_depth", CountOfItems, func() float64 { return n })
	assert.True(t, c.ReadOnly())
	assert.Equal(t, 0.0, c.Value())
	c.Update()
	assert.Equal(t, 1.0, c.Value())

	n = 42
	assert.Equal(t, 1.0, c.Value())
	c.Update()
	assert.Equal(t, 42.0, c.Value())

	mutators := []func() error{
		c.Increment,
		func() error { return c.IncrementBy(1) },
		c.Decrement,
		func() error { return c.DecrementBy(1) },
		func() error { return c.SetRawValue(1) },
		func() error { return c.SetRawTime(time.Now()) },
		c.IncrementBase,
		func() error { return c.IncrementBaseBy(1) },
		func() error { return c.SetBaseRawValue(1) },
	}
	for i, m := range mutators {
		assert.ErrorIs(t, m(), ErrUnsupportedOperation, "mutator %d", i)
	}
}

type stubSource struct {
	v   float64
	err error
}

func (s *stubSource) NextValue() (float64, error) { return s.v, s.err }

func TestSystemCounterKeepsValueOnError(t *testing.T) {
	src := &stubSource{v: 12.5}
	c := NewSystem("cpu", PercentValue, src)
	c.Update()
	assert.Equal(t, 12.5, c.Value())
	assert.NoError(t, c.Err())

	src.err = errors.New("sample failed")
	src.v = 99
	c.Update()
	assert.Equal(t, 12.5, c.Value())
	assert.Error(t, c.Err())

	src.err = nil
	c.Update()
	assert.Equal(t, 99.0, c.Value())
	assert.ErrorIs(t, c.Increment(), ErrUnsupportedOperation)
}

func TestStringCounters(t *testing.T) {
	s := NewString("version", "1.0")
	require.NoError(t, s.SetValue("1.1"))
	assert.Equal(t, "1.1", s.Value())
	assert.False(t, s.ReadOnly())

	state := "starting"
	f := NewFuncString("phase", func() string { return state })
	f.Update()
	assert.Equal(t, "starting", f.Value())
	state = "ready"
	f.Update()
	assert.Equal(t, "ready", f.Value())
	assert.ErrorIs(t, f.SetValue("x"), ErrUnsupportedOperation)
}

func TestValueSnapshotIsRaceFree(t *testing.T) {
	c := mustNumeric(t, CountOfItems)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = c.Increment()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.Update()
			_ = c.Value()
		}
	}()
	wg.Wait()
	c.Update()
	assert.Equal(t, 1000.0, c.Value())
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "per_second", CountPerSecond.String())
	assert.Equal(t, "type(42)", Type(42).String())
}
