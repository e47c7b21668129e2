// Package counter implements the measured values attached to state nodes.
//
// A counter keeps raw state, which producers mutate, and a displayed value,
// which Update recomputes from it. Value is a lock-free snapshot and is safe
// to read from any goroutine. Writes to one counter from several goroutines
// must be serialized by the caller.
package counter

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// ErrUnsupportedOperation is returned by mutators that the counter's type or
// its read-only backing does not allow.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// Type selects how a counter derives its displayed value.
type Type int

const (
	CountOfItems Type = iota
	CountPerSecond
	AverageValue
	DeltaValue
	PercentValue
	ElapsedTime
	StringValue
)

var typeNames = [...]string{
	CountOfItems:   "count",
	CountPerSecond: "per_second",
	AverageValue:   "average",
	DeltaValue:     "delta",
	PercentValue:   "percent",
	ElapsedTime:    "elapsed",
	StringValue:    "string",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

// HasBase reports whether the type divides by a base accumulator.
func (t Type) HasBase() bool { return t == AverageValue || t == PercentValue }

// Counter is the part every counter variant shares.
type Counter interface {
	Name() string
	Type() Type
	ReadOnly() bool
	// Update recomputes the displayed value.
	Update()
	// String renders the displayed value.
	String() string
}

// Numeric is a counter with a float displayed value and the raw mutators.
// Read-only variants return ErrUnsupportedOperation from every mutator.
type Numeric interface {
	Counter
	Value() float64
	Increment() error
	IncrementBy(v float64) error
	Decrement() error
	DecrementBy(v float64) error
	SetRawValue(v float64) error
	SetRawTime(ts time.Time) error
	IncrementBase() error
	IncrementBaseBy(v float64) error
	SetBaseRawValue(v float64) error
}

// Textual is a counter with a string displayed value.
type Textual interface {
	Counter
	Value() string
	SetValue(s string) error
}

// Option configures a counter.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithLogger sets the logger for sample failures of system counters.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now for second rollover and elapsed time.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// atomicFloat is a float64 stored as its bit pattern.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) Add(d float64) float64 {
	for {
		old := f.bits.Load()
		v := math.Float64frombits(old) + d
		if f.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return v
		}
	}
}

func unsupported(name, op string, t Type) error {
	return fmt.Errorf("counter %s: %s on %s counter: %w", name, op, t, ErrUnsupportedOperation)
}

func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.3f", v)
}
