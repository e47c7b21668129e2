package vigil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/crimson-sun/vigil/internal/counter"
	"github.com/crimson-sun/vigil/internal/escalate"
	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/monitor"
	"github.com/crimson-sun/vigil/internal/output"
	"github.com/crimson-sun/vigil/internal/output/memory"
)

type (
	Module       = monitor.Module
	Node         = monitor.Node
	NodeID       = monitor.NodeID
	Stats        = monitor.Stats
	Event        = model.Event
	Severity     = model.Severity
	Thresholds   = escalate.Thresholds
	FetchRequest = output.FetchRequest

	Storage       = output.Storage
	Notifier      = output.Notifier
	EmailNotifier = output.EmailNotifier
	SmsNotifier   = output.SmsNotifier

	CounterType = counter.Type
	Source      = counter.Source
)

const (
	SeverityNone            = model.SeverityNone
	SeverityFatal           = model.SeverityFatal
	SeverityNotify          = model.SeverityNotify
	SeverityNotifyWithEmail = model.SeverityNotifyWithEmail
	SeverityNotifyWithSms   = model.SeverityNotifyWithSms
	SeverityErrorWithEmail  = model.SeverityErrorWithEmail
	SeverityErrorWithSms    = model.SeverityErrorWithSms
)

const (
	CountOfItems   = counter.CountOfItems
	CountPerSecond = counter.CountPerSecond
	AverageValue   = counter.AverageValue
	DeltaValue     = counter.DeltaValue
	PercentValue   = counter.PercentValue
	ElapsedTime    = counter.ElapsedTime
)

var (
	ErrInvalidArgument      = model.ErrInvalidArgument
	ErrUnsupportedOperation = counter.ErrUnsupportedOperation
	ErrAlreadyDisposed      = monitor.ErrAlreadyDisposed
)

// DefaultThresholds returns the standard severity bands.
func DefaultThresholds() Thresholds { return escalate.DefaultThresholds() }

// ParseSeverity accepts a band name ("notify_email") or an integer.
func ParseSeverity(s string) (Severity, error) { return model.ParseSeverity(s) }

type options struct {
	storage    Storage
	monitoring []monitor.Option
}

// Option configures a Module.
type Option func(*options)

// WithStorage sets the event store. Default: an in-memory store.
func WithStorage(s Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithNotifier sets the log/page channel.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithNotifier(n)) }
}

// WithEmailNotifier sets the email channel.
func WithEmailNotifier(n EmailNotifier) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithEmailNotifier(n)) }
}

// WithSmsNotifier sets the SMS channel.
func WithSmsNotifier(n SmsNotifier) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithSmsNotifier(n)) }
}

// WithThresholds overrides the severity bands.
func WithThresholds(t Thresholds) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithThresholds(t)) }
}

// WithUpdateInterval sets the counter refresh cadence. Zero disables the
// background updater. Default: 1s.
func WithUpdateInterval(d time.Duration) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithUpdateInterval(d)) }
}

// WithDrainTimeout bounds how long Close waits for queued events when its
// context has no deadline. Default: 5s.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithDrainTimeout(d)) }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithLogger(l)) }
}

// WithRootSeverity sets the severity components inherit by default.
func WithRootSeverity(s Severity) Option {
	return func(o *options) { o.monitoring = append(o.monitoring, monitor.WithRootSeverity(s)) }
}

// New starts a Module for the machine/module pair.
func New(machine, module string, opts ...Option) (*Module, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.storage == nil {
		o.storage = memory.New()
	}
	m, err := monitor.New(machine, module, o.storage, o.monitoring...)
	if err != nil {
		return nil, fmt.Errorf("vigil: %w", err)
	}
	return m, nil
}
