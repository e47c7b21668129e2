// Package webhook is the page channel: notifications POSTed in batches to an
// HTTP endpoint (a pager, an email or an SMS gateway).
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/vigil/internal/httpclient"
	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets extra HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) {
		for k, v := range h {
			o.client = append(o.client, httpclient.WithHeader(k, v))
		}
	}
}

// WithBatchSize sets the number of notifications that triggers a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval bounds how long a partial batch waits. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// WithTimeout bounds each POST attempt. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client = append(o.client, httpclient.WithTimeout(d)) }
}

// WithRetry sets the retry count and first backoff for failed POSTs.
func WithRetry(n int, backoff time.Duration) Option {
	return func(o *Output) {
		o.client = append(o.client, httpclient.WithRetries(n), httpclient.WithBackoff(backoff))
	}
}

// WithVerbosity sets how much of each event is sent. Default: Standard.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithOnError sets the callback for failures of timer-triggered flushes.
// Default: a slog warning.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output accumulates notifications and POSTs them as a JSON array when
// batchSize is reached, flushInterval elapses or Close is called.
type Output struct {
	url           string
	client        []httpclient.Option
	http          *httpclient.Client
	batchSize     int
	flushInterval time.Duration
	verbosity     output.Verbosity
	errFunc       func(error)

	mu      sync.Mutex
	pending []output.Notification
	timer   *time.Timer
	sendMu  sync.Mutex // keeps batches in order on the wire
}

// New creates a webhook output targeting url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		url:           url,
		client:        []httpclient.Option{httpclient.WithTimeout(defaultTimeout)},
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		verbosity:     output.Standard,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "url", url, "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.http = httpclient.New(url, o.client...)
	return o
}

func (o *Output) Notify(ctx context.Context, event model.Event) error {
	return o.add(ctx, output.ChannelNotify, event)
}

func (o *Output) NotifyWithEmail(ctx context.Context, event model.Event) error {
	return o.add(ctx, output.ChannelEmail, event)
}

func (o *Output) NotifyWithSms(ctx context.Context, event model.Event) error {
	return o.add(ctx, output.ChannelSms, event)
}

// add queues one notification. A full batch is sent on the caller's
// goroutine and its error returned; the first notification of a new batch
// arms the flush timer.
func (o *Output) add(ctx context.Context, ch output.Channel, event model.Event) error {
	o.mu.Lock()
	o.pending = append(o.pending, output.NewNotification(ch, event, o.verbosity))
	if len(o.pending) >= o.batchSize {
		batch := o.takeLocked()
		o.mu.Unlock()
		return o.send(ctx, batch)
	}
	if o.timer == nil {
		o.timer = time.AfterFunc(o.flushInterval, o.flushTimer)
	}
	o.mu.Unlock()
	return nil
}

func (o *Output) flushTimer() {
	o.mu.Lock()
	batch := o.takeLocked()
	o.mu.Unlock()
	if err := o.send(context.Background(), batch); err != nil {
		o.errFunc(err)
	}
}

// Close sends whatever is pending.
func (o *Output) Close() error {
	o.mu.Lock()
	batch := o.takeLocked()
	o.mu.Unlock()
	return o.send(context.Background(), batch)
}

// takeLocked detaches the pending batch and disarms the timer. Caller holds o.mu.
func (o *Output) takeLocked() []output.Notification {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	batch := o.pending
	o.pending = nil
	return batch
}

func (o *Output) send(ctx context.Context, batch []output.Notification) error {
	if len(batch) == 0 {
		return nil
	}
	o.sendMu.Lock()
	defer o.sendMu.Unlock()
	if err := o.http.Post(ctx, "", batch, nil); err != nil {
		return fmt.Errorf("webhook: post %d notifications: %w", len(batch), err)
	}
	return nil
}
