// Package output defines the collaborators the event pipeline delivers to:
// durable storage and the notify, email and sms channels.
package output

import (
	"context"
	"time"

	"github.com/crimson-sun/vigil/internal/model"
)

// Storage persists finalized events and serves paginated history.
type Storage interface {
	Store(ctx context.Context, event model.Event) error
	Fetch(ctx context.Context, req FetchRequest) ([]model.Event, error)
}

// Notifier delivers an event on the generic notify channel (log, page).
type Notifier interface {
	Notify(ctx context.Context, event model.Event) error
}

// EmailNotifier delivers an event by email.
type EmailNotifier interface {
	NotifyWithEmail(ctx context.Context, event model.Event) error
}

// SmsNotifier delivers an event by SMS.
type SmsNotifier interface {
	NotifyWithSms(ctx context.Context, event model.Event) error
}

// FetchRequest selects a page of stored events. Empty name filters match
// everything. PageID is an opaque cursor returned by the storage; "" starts
// from the beginning (Forward) or the end (!Forward).
type FetchRequest struct {
	From      time.Time
	To        time.Time
	Machine   string
	Module    string
	Component string
	PageID    string
	PageSize  int
	Forward   bool
}

// Matches reports whether e satisfies the time range and name filters.
func (r FetchRequest) Matches(e model.Event) bool {
	if !r.From.IsZero() && e.Timestamp.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !e.Timestamp.Before(r.To) {
		return false
	}
	if r.Machine != "" && r.Machine != e.Machine {
		return false
	}
	if r.Module != "" && r.Module != e.Module {
		return false
	}
	if r.Component != "" && r.Component != e.Component {
		return false
	}
	return true
}

// Channel names a notification route.
type Channel string

const (
	ChannelNotify Channel = "notify"
	ChannelEmail  Channel = "email"
	ChannelSms    Channel = "sms"
)

// Notification is the wire shape used by the log and webhook channels.
type Notification struct {
	Channel Channel     `json:"channel"`
	Subject string      `json:"subject"`
	Event   model.Event `json:"event"`
}

// NewNotification wraps an event for delivery on ch at the given verbosity.
func NewNotification(ch Channel, e model.Event, verbosity Verbosity) Notification {
	return Notification{Channel: ch, Subject: Subject(e), Event: FormatEvent(e, verbosity)}
}
