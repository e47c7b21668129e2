package counter

import (
	"sync/atomic"
	"time"
)

// NumericCounter is the mutable numeric counter.
type NumericCounter struct {
	name string
	typ  Type
	now  func() time.Time

	raw    atomicFloat
	base   atomicFloat
	value  atomicFloat
	second atomic.Int64 // unix second the per-second accumulator belongs to
	since  atomic.Int64 // unix nanos ElapsedTime measures from; 0 = unset
}

// NewNumeric creates a mutable numeric counter of type t. StringValue is
// rejected with ErrUnsupportedOperation.
func NewNumeric(name string, t Type, opts ...Option) (*NumericCounter, error) {
	if t == StringValue || t < CountOfItems || t > StringValue {
		return nil, unsupported(name, "create numeric", t)
	}
	o := buildOptions(opts)
	c := &NumericCounter{name: name, typ: t, now: o.now}
	c.base.Store(1)
	c.second.Store(c.now().Unix())
	return c, nil
}

func (c *NumericCounter) Name() string   { return c.name }
func (c *NumericCounter) Type() Type     { return c.typ }
func (c *NumericCounter) ReadOnly() bool { return false }

// Value returns the displayed value as of the last refresh.
func (c *NumericCounter) Value() float64 { return c.value.Load() }

func (c *NumericCounter) String() string {
	if c.typ == PercentValue {
		return formatFloat(c.Value()) + "%"
	}
	if c.typ == ElapsedTime {
		return (time.Duration(c.Value() * float64(time.Second))).Round(time.Second).String()
	}
	return formatFloat(c.Value())
}

// RawValue returns the accumulator.
func (c *NumericCounter) RawValue() float64 { return c.raw.Load() }

// BaseValue returns the base accumulator of Average and Percent counters.
func (c *NumericCounter) BaseValue() float64 { return c.base.Load() }

func (c *NumericCounter) Increment() error { return c.IncrementBy(1) }

func (c *NumericCounter) Decrement() error { return c.IncrementBy(-1) }

func (c *NumericCounter) DecrementBy(v float64) error { return c.IncrementBy(-v) }

// IncrementBy adds v to the accumulator. For DeltaValue the accumulator
// becomes v: the counter shows the last delta, not a running sum.
func (c *NumericCounter) IncrementBy(v float64) error {
	switch c.typ {
	case ElapsedTime:
		return unsupported(c.name, "increment", c.typ)
	case DeltaValue:
		c.raw.Store(v)
	case CountPerSecond:
		c.roll()
		c.raw.Add(v)
	default:
		c.raw.Add(v)
	}
	c.refresh()
	return nil
}

// SetRawValue replaces the accumulator. ElapsedTime counters take a
// timestamp through SetRawTime instead.
func (c *NumericCounter) SetRawValue(v float64) error {
	switch c.typ {
	case ElapsedTime:
		return unsupported(c.name, "set raw value", c.typ)
	case CountPerSecond:
		c.roll()
	}
	c.raw.Store(v)
	c.refresh()
	return nil
}

// SetRawTime sets the instant an ElapsedTime counter measures from.
func (c *NumericCounter) SetRawTime(ts time.Time) error {
	if c.typ != ElapsedTime {
		return unsupported(c.name, "set raw time", c.typ)
	}
	c.since.Store(ts.UnixNano())
	c.refresh()
	return nil
}

func (c *NumericCounter) IncrementBase() error { return c.IncrementBaseBy(1) }

func (c *NumericCounter) IncrementBaseBy(v float64) error {
	if !c.typ.HasBase() {
		return unsupported(c.name, "increment base", c.typ)
	}
	c.base.Add(v)
	c.refresh()
	return nil
}

func (c *NumericCounter) SetBaseRawValue(v float64) error {
	if !c.typ.HasBase() {
		return unsupported(c.name, "set base", c.typ)
	}
	c.base.Store(v)
	c.refresh()
	return nil
}

// Update rolls the per-second accumulator and recomputes the displayed value.
func (c *NumericCounter) Update() {
	if c.typ == CountPerSecond {
		c.roll()
	}
	c.refresh()
}

// roll resets the accumulator when the wall-clock second has changed.
func (c *NumericCounter) roll() {
	sec := c.now().Unix()
	old := c.second.Load()
	if sec != old && c.second.CompareAndSwap(old, sec) {
		c.raw.Store(0)
	}
}

func (c *NumericCounter) refresh() {
	raw := c.raw.Load()
	switch c.typ {
	case AverageValue, PercentValue:
		base := c.base.Load()
		v := 0.0
		if base != 0 {
			v = raw / base
		}
		if c.typ == PercentValue {
			v *= 100
		}
		c.value.Store(v)
	case ElapsedTime:
		since := c.since.Load()
		if since == 0 {
			c.value.Store(0)
			return
		}
		c.value.Store(c.now().Sub(time.Unix(0, since)).Seconds())
	default:
		c.value.Store(raw)
	}
}

var _ Numeric = (*NumericCounter)(nil)
