package counter

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// readOnly supplies the numeric mutators of counters backed by a function
// or a sampled source.
type readOnly struct {
	name string
	typ  Type
}

func (r readOnly) Name() string   { return r.name }
func (r readOnly) Type() Type     { return r.typ }
func (r readOnly) ReadOnly() bool { return true }

func (r readOnly) Increment() error              { return unsupported(r.name, "increment", r.typ) }
func (r readOnly) IncrementBy(float64) error     { return unsupported(r.name, "increment", r.typ) }
func (r readOnly) Decrement() error              { return unsupported(r.name, "decrement", r.typ) }
func (r readOnly) DecrementBy(float64) error     { return unsupported(r.name, "decrement", r.typ) }
func (r readOnly) SetRawValue(float64) error     { return unsupported(r.name, "set raw value", r.typ) }
func (r readOnly) SetRawTime(time.Time) error    { return unsupported(r.name, "set raw time", r.typ) }
func (r readOnly) IncrementBase() error          { return unsupported(r.name, "increment base", r.typ) }
func (r readOnly) IncrementBaseBy(float64) error { return unsupported(r.name, "increment base", r.typ) }
func (r readOnly) SetBaseRawValue(float64) error { return unsupported(r.name, "set base", r.typ) }

// FuncCounter shows the result of fn as of the last Update.
type FuncCounter struct {
	readOnly
	fn    func() float64
	value atomicFloat
}

// NewFunc creates a read-only numeric counter evaluated on Update. It reads
// 0 until the first Update.
func NewFunc(name string, t Type, fn func() float64) *FuncCounter {
	return &FuncCounter{readOnly: readOnly{name: name, typ: t}, fn: fn}
}

func (c *FuncCounter) Update() {
	if c.fn != nil {
		c.value.Store(c.fn())
	}
}

func (c *FuncCounter) Value() float64 { return c.value.Load() }
func (c *FuncCounter) String() string { return formatFloat(c.Value()) }

// Source is a sampled system measurement.
type Source interface {
	NextValue() (float64, error)
}

// SystemCounter samples a Source on every Update. A failed sample keeps the
// previous value.
type SystemCounter struct {
	readOnly
	src    Source
	logger *slog.Logger
	value  atomicFloat

	mu      sync.Mutex
	lastErr error
}

// NewSystem creates a read-only counter of type t over src. The first sample
// is taken by the first Update.
func NewSystem(name string, t Type, src Source, opts ...Option) *SystemCounter {
	o := buildOptions(opts)
	return &SystemCounter{
		readOnly: readOnly{name: name, typ: t},
		src:      src,
		logger:   o.logger,
	}
}

func (c *SystemCounter) Update() {
	v, err := c.src.NextValue()
	c.mu.Lock()
	prev := c.lastErr
	c.lastErr = err
	c.mu.Unlock()
	if err != nil {
		if prev == nil {
			c.logger.Warn("system counter sample failed", "counter", c.name, "error", err)
		}
		return
	}
	c.value.Store(v)
}

// Err returns the error of the last sample, if any.
func (c *SystemCounter) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *SystemCounter) Value() float64 { return c.value.Load() }

func (c *SystemCounter) String() string {
	if c.typ == PercentValue {
		return formatFloat(c.Value()) + "%"
	}
	return formatFloat(c.Value())
}

// StringCounter holds a string set by producers.
type StringCounter struct {
	name  string
	value atomic.Pointer[string]
}

func NewString(name, initial string) *StringCounter {
	c := &StringCounter{name: name}
	c.value.Store(&initial)
	return c
}

func (c *StringCounter) Name() string   { return c.name }
func (c *StringCounter) Type() Type     { return StringValue }
func (c *StringCounter) ReadOnly() bool { return false }
func (c *StringCounter) Update()        {}
func (c *StringCounter) String() string { return c.Value() }

func (c *StringCounter) Value() string { return *c.value.Load() }

func (c *StringCounter) SetValue(s string) error {
	c.value.Store(&s)
	return nil
}

// FuncStringCounter shows the result of fn as of the last Update.
type FuncStringCounter struct {
	name  string
	fn    func() string
	value atomic.Pointer[string]
}

func NewFuncString(name string, fn func() string) *FuncStringCounter {
	c := &FuncStringCounter{name: name, fn: fn}
	empty := ""
	c.value.Store(&empty)
	return c
}

func (c *FuncStringCounter) Name() string   { return c.name }
func (c *FuncStringCounter) Type() Type     { return StringValue }
func (c *FuncStringCounter) ReadOnly() bool { return true }
func (c *FuncStringCounter) String() string { return c.Value() }
func (c *FuncStringCounter) Value() string  { return *c.value.Load() }

func (c *FuncStringCounter) Update() {
	if c.fn == nil {
		return
	}
	s := c.fn()
	c.value.Store(&s)
}

func (c *FuncStringCounter) SetValue(string) error {
	return unsupported(c.name, "set value", StringValue)
}

var (
	_ Numeric = (*FuncCounter)(nil)
	_ Numeric = (*SystemCounter)(nil)
	_ Textual = (*StringCounter)(nil)
	_ Textual = (*FuncStringCounter)(nil)
)
