package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidArgument is returned when a required identifier is empty.
var ErrInvalidArgument = errors.New("invalid argument")

// Event is one monitoring occurrence. It is treated as immutable once built;
// the dedup register mutates its own clone through Update and Rollup only.
type Event struct {
	ID          string
	Key         string // machine:module:component:title
	Timestamp   time.Time
	Machine     string
	Module      string
	Component   string
	Severity    Severity
	Title       string
	Description Text
	Err         error
	Count       int            // occurrences folded into this event by dedup
	Window      *time.Duration // set on events cached by the dedup register
}

// NewEvent validates the identifiers and builds an Event stamped with the
// current UTC time.
func NewEvent(machine, module, component string, sev Severity, title string, desc Text, err error) (Event, error) {
	switch {
	case strings.TrimSpace(machine) == "":
		return Event{}, fmt.Errorf("%w: machine is empty", ErrInvalidArgument)
	case strings.TrimSpace(module) == "":
		return Event{}, fmt.Errorf("%w: module is empty", ErrInvalidArgument)
	case strings.TrimSpace(title) == "":
		return Event{}, fmt.Errorf("%w: title is empty", ErrInvalidArgument)
	}
	return Event{
		ID:          uuid.NewString(),
		Key:         EventKey(machine, module, component, title),
		Timestamp:   time.Now().UTC(),
		Machine:     machine,
		Module:      module,
		Component:   component,
		Severity:    sev,
		Title:       title,
		Description: desc,
		Err:         err,
	}, nil
}

// EventKey derives the dedup identity of an event.
func EventKey(machine, module, component, title string) string {
	return machine + ":" + module + ":" + component + ":" + title
}

// Clone returns a copy with its own ID and window pointer.
func (e Event) Clone() Event {
	c := e
	c.ID = uuid.NewString()
	if e.Window != nil {
		w := *e.Window
		c.Window = &w
	}
	return c
}

// Update records one more occurrence seen at ts (now if zero).
func (e *Event) Update(ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	e.Count++
	e.Timestamp = ts.UTC()
}

// Rollup returns an event summarizing the occurrences accumulated since the
// last rollup and resets the counter. The description reads
// "<description> (occurred N times in <window>)".
func (e *Event) Rollup() Event {
	r := e.Clone()
	n := e.Count
	base := e.Description
	var window time.Duration
	if e.Window != nil {
		window = *e.Window
	}
	r.Description = LazyText(func() string {
		return fmt.Sprintf("%s (occurred %d times in %s)", base.String(), n, FormatDuration(window))
	})
	e.Count = 0
	return r
}

// ErrText returns the attached error text, or "".
func (e Event) ErrText() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// record is the JSON shape of an Event.
type record struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Timestamp   time.Time `json:"timestamp"`
	Machine     string    `json:"machine"`
	Module      string    `json:"module"`
	Component   string    `json:"component,omitempty"`
	Severity    Severity  `json:"severity"`
	Level       string    `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	Count       int       `json:"count,omitempty"`
	Window      string    `json:"window,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	r := record{
		ID:          e.ID,
		Key:         e.Key,
		Timestamp:   e.Timestamp,
		Machine:     e.Machine,
		Module:      e.Module,
		Component:   e.Component,
		Severity:    e.Severity,
		Level:       e.Severity.String(),
		Title:       e.Title,
		Description: e.Description.String(),
		Error:       e.ErrText(),
		Count:       e.Count,
	}
	if e.Window != nil {
		r.Window = e.Window.String()
	}
	return json.Marshal(r)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*e = Event{
		ID:          r.ID,
		Key:         r.Key,
		Timestamp:   r.Timestamp,
		Machine:     r.Machine,
		Module:      r.Module,
		Component:   r.Component,
		Severity:    r.Severity,
		Title:       r.Title,
		Description: NewText(r.Description),
		Count:       r.Count,
	}
	if e.Key == "" {
		e.Key = EventKey(r.Machine, r.Module, r.Component, r.Title)
	}
	if r.Error != "" {
		e.Err = errors.New(r.Error)
	}
	if r.Window != "" {
		w, err := time.ParseDuration(r.Window)
		if err != nil {
			return fmt.Errorf("event window: %w", err)
		}
		e.Window = &w
	}
	return nil
}

// FormatDuration produces a human-readable short duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}

// LogValue renders the identifying fields of an event for slog.
func (e Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("key", e.Key),
		slog.String("severity", e.Severity.String()),
		slog.Int("count", e.Count),
	)
}
