package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventValidates(t *testing.T) {
	tests := []struct {
		name                   string
		machine, module, title string
	}{
		{"empty machine", "", "billing", "db down"},
		{"empty module", "host-1", "", "db down"},
		{"empty title", "host-1", "billing", ""},
		{"blank title", "host-1", "billing", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvent(tt.machine, tt.module, "db", SeverityNotify, tt.title, NewText("x"), nil)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestNewEventKey(t *testing.T) {
	e, err := NewEvent("host-1", "billing", "db", SeverityNotify, "db down", NewText("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "host-1:billing:db:db down", e.Key)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Zero(t, e.Count)
}

func TestLazyTextEvaluatesOnce(t *testing.T) {
	calls := 0
	txt := LazyText(func() string {
		calls++
		return "computed"
	})
	assert.Equal(t, 0, calls)

	cp := txt
	assert.Equal(t, "computed", txt.String())
	assert.Equal(t, "computed", cp.String())
	assert.Equal(t, 1, calls)
}

func TestZeroTextIsEmpty(t *testing.T) {
	var txt Text
	assert.Equal(t, "", txt.String())
	assert.Equal(t, "", LazyText(nil).String())
}

func TestRollupResetsCount(t *testing.T) {
	e, err := NewEvent("host-1", "billing", "db", SeverityNotify, "db down", NewText("timeout"), nil)
	require.NoError(t, err)
	w := 5 * time.Second
	e.Window = &w

	e.Update(time.Now())
	e.Update(time.Now())
	e.Update(time.Now())

	r := e.Rollup()
	assert.Equal(t, 3, r.Count)
	assert.Equal(t, "timeout (occurred 3 times in 5s)", r.Description.String())
	assert.Equal(t, 0, e.Count)
	assert.NotEqual(t, e.ID, r.ID)
	assert.Equal(t, e.Key, r.Key)
}

func TestCloneCopiesWindow(t *testing.T) {
	w := time.Second
	e := Event{Key: "k", Window: &w}
	c := e.Clone()
	*c.Window = time.Minute
	assert.Equal(t, time.Second, *e.Window)
}

func TestEventJSON(t *testing.T) {
	w := 90 * time.Second
	e, err := NewEvent("host-1", "billing", "db", SeverityErrorWithSms, "db down", NewText("timeout"), errors.New("dial tcp"))
	require.NoError(t, err)
	e.Window = &w
	e.Count = 2

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"error_sms"`)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, e.Key, got.Key)
	assert.Equal(t, e.Severity, got.Severity)
	assert.Equal(t, "timeout", got.Description.String())
	assert.Equal(t, "dial tcp", got.ErrText())
	require.NotNil(t, got.Window)
	assert.Equal(t, w, *got.Window)
	assert.Equal(t, 2, got.Count)
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityNone, "none"},
		{SeverityFatal, "fatal"},
		{SeverityNotify + 5, "notify+5"},
		{SeverityErrorWithSms, "error_sms"},
		{-3, "-3"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", int(tt.sev), got, tt.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("Notify_SMS")
	require.NoError(t, err)
	assert.Equal(t, SeverityNotifyWithSms, s)

	s, err = ParseSeverity("250")
	require.NoError(t, err)
	assert.Equal(t, Severity(250), s)

	_, err = ParseSeverity("loud")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5s"},
		{2 * time.Minute, "2m"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
