package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity classifies an event. Values are ordered; the escalation bands are
// defined by the thresholds in the escalate package, whose defaults are the
// named constants below.
type Severity int

// Default band boundaries, ascending. Fatal sits below Notify numerically but
// escalates to every channel.
const (
	SeverityNone            Severity = 0
	SeverityFatal           Severity = 100
	SeverityNotify          Severity = 200
	SeverityNotifyWithEmail Severity = 300
	SeverityNotifyWithSms   Severity = 400
	SeverityErrorWithEmail  Severity = 500
	SeverityErrorWithSms    Severity = 600
)

var severityNames = []struct {
	sev  Severity
	name string
}{
	{SeverityNone, "none"},
	{SeverityFatal, "fatal"},
	{SeverityNotify, "notify"},
	{SeverityNotifyWithEmail, "notify_email"},
	{SeverityNotifyWithSms, "notify_sms"},
	{SeverityErrorWithEmail, "error_email"},
	{SeverityErrorWithSms, "error_sms"},
}

// String returns the band name for the named constants, e.g. "notify_email",
// and "notify+5" style offsets for values in between.
func (s Severity) String() string {
	base := severityNames[0]
	for _, n := range severityNames {
		if s >= n.sev {
			base = n
		}
	}
	if s < SeverityNone {
		return strconv.Itoa(int(s))
	}
	if s == base.sev {
		return base.name
	}
	return fmt.Sprintf("%s+%d", base.name, int(s-base.sev))
}

// ParseSeverity accepts a band name ("notify_sms") or a plain integer.
func ParseSeverity(s string) (Severity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, n := range severityNames {
		if n.name == s {
			return n.sev, nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return SeverityNone, fmt.Errorf("%w: unknown severity %q", ErrInvalidArgument, s)
	}
	return Severity(v), nil
}
