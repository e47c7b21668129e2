// Package pipeline holds the consumer side of the event queue: every event
// is stored, then escalated to the notifiers its severity selects.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/crimson-sun/vigil/internal/escalate"
	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithThresholds overrides the default severity bands.
func WithThresholds(t escalate.Thresholds) Option {
	return func(d *Dispatcher) { d.thresholds = t }
}

// WithNotifier sets the log/page channel.
func WithNotifier(n output.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithEmail sets the email channel.
func WithEmail(n output.EmailNotifier) Option {
	return func(d *Dispatcher) { d.email = n }
}

// WithSms sets the SMS channel.
func WithSms(n output.SmsNotifier) Option {
	return func(d *Dispatcher) { d.sms = n }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// Stats counts dispatch outcomes per channel.
type Stats struct {
	Stored   int64
	Notified int64
	Emailed  int64
	Texted   int64
	Failures int64
}

// Dispatcher implements queue.Handler. A nil channel is skipped.
type Dispatcher struct {
	storage    output.Storage
	notifier   output.Notifier
	email      output.EmailNotifier
	sms        output.SmsNotifier
	thresholds escalate.Thresholds
	logger     *slog.Logger

	stored, notified, emailed, texted, failures atomic.Int64
}

// New creates a Dispatcher writing to storage.
func New(storage output.Storage, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		storage:    storage,
		thresholds: escalate.DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Route reports the channels an event of severity sev goes to.
func (d *Dispatcher) Route(sev model.Severity) escalate.Route {
	return d.thresholds.Route(sev)
}

// Handle stores the event, then notifies each routed channel. A failing
// channel does not stop the others; all failures are joined.
func (d *Dispatcher) Handle(ctx context.Context, event model.Event) error {
	route := d.thresholds.Route(event.Severity)
	var errs []error

	if d.storage != nil {
		if err := d.storage.Store(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: store: %w", err))
		} else {
			d.stored.Add(1)
		}
	}
	if route.Has(escalate.RouteNotify) && d.notifier != nil {
		if err := d.notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: notify: %w", err))
		} else {
			d.notified.Add(1)
		}
	}
	if route.Has(escalate.RouteEmail) && d.email != nil {
		if err := d.email.NotifyWithEmail(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: email: %w", err))
		} else {
			d.emailed.Add(1)
		}
	}
	if route.Has(escalate.RouteSms) && d.sms != nil {
		if err := d.sms.NotifyWithSms(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: sms: %w", err))
		} else {
			d.texted.Add(1)
		}
	}

	if len(errs) > 0 {
		d.failures.Add(1)
		return errors.Join(errs...)
	}
	d.logger.Debug("event dispatched", "event", event, "route", route.String())
	return nil
}

// Fetch passes the request to the storage unchanged.
func (d *Dispatcher) Fetch(ctx context.Context, req output.FetchRequest) ([]model.Event, error) {
	if d.storage == nil {
		return nil, fmt.Errorf("pipeline: fetch: no storage configured")
	}
	return d.storage.Fetch(ctx, req)
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Stored:   d.stored.Load(),
		Notified: d.notified.Load(),
		Emailed:  d.emailed.Load(),
		Texted:   d.texted.Load(),
		Failures: d.failures.Load(),
	}
}

// Collaborators returns the distinct configured storage and notifiers, for
// callers that need to close them.
func (d *Dispatcher) Collaborators() []any {
	var out []any
	for _, c := range []any{d.storage, d.notifier, d.email, d.sms} {
		if c != nil && !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func contains(list []any, c any) bool {
	if !reflect.TypeOf(c).Comparable() {
		return false
	}
	for _, x := range list {
		if reflect.TypeOf(x) == reflect.TypeOf(c) && x == c {
			return true
		}
	}
	return false
}
