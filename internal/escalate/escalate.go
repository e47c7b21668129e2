// Package escalate maps an event severity to the channels it is delivered to.
package escalate

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/vigil/internal/model"
)

// Route is a set of delivery channels.
type Route uint8

const (
	RouteStore Route = 1 << iota
	RouteNotify
	RouteEmail
	RouteSms
)

// Has reports whether every channel in c is part of r.
func (r Route) Has(c Route) bool { return r&c == c }

func (r Route) String() string {
	var parts []string
	for _, c := range []struct {
		r    Route
		name string
	}{
		{RouteStore, "store"},
		{RouteNotify, "notify"},
		{RouteEmail, "email"},
		{RouteSms, "sms"},
	} {
		if r.Has(c.r) {
			parts = append(parts, c.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Thresholds are the lower bounds of the severity bands.
type Thresholds struct {
	Fatal           model.Severity
	Notify          model.Severity
	NotifyWithEmail model.Severity
	NotifyWithSms   model.Severity
	ErrorWithEmail  model.Severity
	ErrorWithSms    model.Severity
}

// DefaultThresholds returns the bands named by the model.Severity constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Fatal:           model.SeverityFatal,
		Notify:          model.SeverityNotify,
		NotifyWithEmail: model.SeverityNotifyWithEmail,
		NotifyWithSms:   model.SeverityNotifyWithSms,
		ErrorWithEmail:  model.SeverityErrorWithEmail,
		ErrorWithSms:    model.SeverityErrorWithSms,
	}
}

// Validate checks that the notify bands ascend and the error bands ascend.
func (t Thresholds) Validate() error {
	if !(t.Fatal < t.Notify && t.Notify < t.NotifyWithEmail && t.NotifyWithEmail < t.NotifyWithSms) {
		return fmt.Errorf("%w: thresholds must ascend fatal < notify < notify_email < notify_sms", model.ErrInvalidArgument)
	}
	if t.ErrorWithEmail >= t.ErrorWithSms {
		return fmt.Errorf("%w: thresholds must ascend error_email < error_sms", model.ErrInvalidArgument)
	}
	return nil
}

// Route returns the channels an event of the given severity is delivered to.
// Every event is stored. The band checks run in a fixed order: a severity in
// [Fatal, Notify) is escalated to every channel even though it sits below
// Notify.
func (t Thresholds) Route(sev model.Severity) Route {
	r := RouteStore
	switch {
	case sev >= t.Notify && sev < t.NotifyWithEmail:
		r |= RouteNotify
	case (sev >= t.ErrorWithEmail && sev < t.ErrorWithSms) ||
		(sev >= t.NotifyWithEmail && sev < t.NotifyWithSms):
		r |= RouteNotify | RouteEmail
	case (sev >= t.ErrorWithSms && sev < t.Fatal) || sev >= t.NotifyWithSms:
		r |= RouteNotify | RouteEmail | RouteSms
	case sev >= t.Fatal && sev < t.Notify:
		r |= RouteNotify | RouteEmail | RouteSms
	}
	return r
}
