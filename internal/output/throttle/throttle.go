// Package throttle guards a notification target against floods.
package throttle

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

// Option configures a Throttle.
type Option func(*Throttle)

// WithLogger sets the logger used to report dropped notifications.
func WithLogger(l *slog.Logger) Option {
	return func(t *Throttle) { t.logger = l }
}

// Throttle forwards notifications to inner while a token bucket allows it and
// drops them otherwise. Drops are logged and counted, never returned as
// errors.
type Throttle struct {
	inner   any
	limiter *rate.Limiter
	logger  *slog.Logger
	dropped atomic.Int64
}

// New wraps inner, allowing perSecond notifications on average with the
// given burst. inner may implement any of the notifier interfaces.
func New(inner any, perSecond float64, burst int, opts ...Option) *Throttle {
	if burst < 1 {
		burst = 1
	}
	t := &Throttle{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Throttle) Notify(ctx context.Context, event model.Event) error {
	n, ok := t.inner.(output.Notifier)
	if !ok || !t.allow(output.ChannelNotify, event) {
		return nil
	}
	return n.Notify(ctx, event)
}

func (t *Throttle) NotifyWithEmail(ctx context.Context, event model.Event) error {
	n, ok := t.inner.(output.EmailNotifier)
	if !ok || !t.allow(output.ChannelEmail, event) {
		return nil
	}
	return n.NotifyWithEmail(ctx, event)
}

func (t *Throttle) NotifyWithSms(ctx context.Context, event model.Event) error {
	n, ok := t.inner.(output.SmsNotifier)
	if !ok || !t.allow(output.ChannelSms, event) {
		return nil
	}
	return n.NotifyWithSms(ctx, event)
}

// Dropped returns how many notifications were suppressed.
func (t *Throttle) Dropped() int64 { return t.dropped.Load() }

func (t *Throttle) Close() error {
	if c, ok := t.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Throttle) allow(ch output.Channel, event model.Event) bool {
	if t.limiter.Allow() {
		return true
	}
	t.dropped.Add(1)
	t.logger.Warn("notification throttled",
		"channel", ch, "key", event.Key, "severity", event.Severity.String())
	return false
}
