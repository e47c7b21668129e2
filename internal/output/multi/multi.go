// Package multi fans one notification channel out to several targets.
package multi

import (
	"context"
	"errors"
	"io"

	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

// Multi fans out notifications to every target that serves the channel.
// Each target may implement any of output.Notifier, output.EmailNotifier and
// output.SmsNotifier; a target only receives the channels it implements.
// If one target fails, the remaining targets still receive the event.
type Multi struct {
	notifiers []output.Notifier
	emailers  []output.EmailNotifier
	sms       []output.SmsNotifier
	closers   []io.Closer
}

// New creates a Multi over the given targets.
func New(targets ...any) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if n, ok := t.(output.Notifier); ok {
			m.notifiers = append(m.notifiers, n)
		}
		if n, ok := t.(output.EmailNotifier); ok {
			m.emailers = append(m.emailers, n)
		}
		if n, ok := t.(output.SmsNotifier); ok {
			m.sms = append(m.sms, n)
		}
		if c, ok := t.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}
	return m
}

// Notify delivers the event to every notify target. Errors are collected
// but do not prevent delivery to subsequent targets.
func (m *Multi) Notify(ctx context.Context, event model.Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) NotifyWithEmail(ctx context.Context, event model.Event) error {
	var errs []error
	for _, n := range m.emailers {
		if err := n.NotifyWithEmail(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) NotifyWithSms(ctx context.Context, event model.Event) error {
	var errs []error
	for _, n := range m.sms {
		if err := n.NotifyWithSms(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every target that has one, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
