package output

import (
	"fmt"
	"unicode/utf8"

	"github.com/crimson-sun/vigil/internal/model"
)

// Verbosity controls how much of an event a channel carries.
type Verbosity int

const (
	Minimal Verbosity = iota
	Standard
	Full
)

// ParseVerbosity maps "minimal", "standard", "full" to a Verbosity.
// Unknown strings default to Standard.
func ParseVerbosity(s string) Verbosity {
	switch s {
	case "minimal":
		return Minimal
	case "full":
		return Full
	default:
		return Standard
	}
}

const (
	maxDescription = 2000 // runes kept at Standard
	maxSubject     = 120
)

// FormatEvent returns a copy of the event with fields stripped according to verbosity.
// At Minimal: Description and Err are dropped.
// At Standard: Description is cut to maxDescription runes.
// At Full: all fields preserved.
func FormatEvent(e model.Event, verbosity Verbosity) model.Event {
	switch verbosity {
	case Minimal:
		e.Description = model.Text{}
		e.Err = nil
	case Standard:
		desc := e.Description
		e.Description = model.LazyText(func() string { return truncate(desc.String(), maxDescription) })
	}
	return e
}

// truncate cuts s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// Subject renders a one-line headline for channels with a subject field.
func Subject(e model.Event) string {
	s := fmt.Sprintf("[%s] %s/%s", e.Severity, e.Machine, e.Module)
	if e.Component != "" {
		s += "/" + e.Component
	}
	s += ": " + e.Title
	if e.Count > 0 {
		s += fmt.Sprintf(" (x%d)", e.Count)
	}
	return truncate(s, maxSubject)
}
