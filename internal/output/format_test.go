package output

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/crimson-sun/vigil/internal/model"
)

func baseEvent() model.Event {
	return model.Event{
		Key:         "host-1:billing:db:connection refused",
		Machine:     "host-1",
		Module:      "billing",
		Component:   "db",
		Severity:    model.SeverityNotifyWithEmail,
		Timestamp:   time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
		Title:       "connection refused",
		Description: model.NewText("dial tcp 10.0.0.5:5432"),
		Err:         errors.New("ECONNREFUSED"),
	}
}

func TestFormatEventMinimal(t *testing.T) {
	e := FormatEvent(baseEvent(), Minimal)

	if e.Description.String() != "" {
		t.Fatal("Description should be empty at Minimal")
	}
	if e.Err != nil {
		t.Fatal("Err should be nil at Minimal")
	}
	if e.Title != "connection refused" {
		t.Fatal("Title should be preserved")
	}
}

func TestFormatEventStandard(t *testing.T) {
	e := FormatEvent(baseEvent(), Standard)

	if e.Description.String() == "" {
		t.Fatal("Description should be preserved at Standard")
	}
	if e.ErrText() != "ECONNREFUSED" {
		t.Fatalf("Err text should be preserved at Standard, got %q", e.ErrText())
	}
}

func TestFormatEventStandardTruncates(t *testing.T) {
	e := baseEvent()
	e.Description = model.NewText(strings.Repeat("é", maxDescription+10))

	got := FormatEvent(e, Standard).Description.String()
	if utf8.RuneCountInString(got) != maxDescription+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected %d runes plus ellipsis, got %d", maxDescription, utf8.RuneCountInString(got))
	}
	if full := FormatEvent(e, Full).Description.String(); utf8.RuneCountInString(full) != maxDescription+10 {
		t.Fatal("Full should keep the whole description")
	}
}

func TestSubjectTruncates(t *testing.T) {
	e := baseEvent()
	e.Title = strings.Repeat("x", 200)
	if got := Subject(e); utf8.RuneCountInString(got) != maxSubject+3 {
		t.Fatalf("expected subject cut to %d runes, got %d", maxSubject, utf8.RuneCountInString(got))
	}
}

func TestFormatEventCount(t *testing.T) {
	e := baseEvent()
	e.Count = 5
	data, err := json.Marshal(FormatEvent(e, Standard))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m["count"] != float64(5) {
		t.Fatalf("expected count=5, got %v", m["count"])
	}

	// Count == 0 should be omitted.
	e.Count = 0
	data, _ = json.Marshal(FormatEvent(e, Standard))
	m = nil
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := m["count"]; ok {
		t.Fatal("count=0 should be omitted from JSON")
	}
}

func TestSubject(t *testing.T) {
	e := baseEvent()
	e.Count = 3
	want := "[notify_email] host-1/billing/db: connection refused (x3)"
	if got := Subject(e); got != want {
		t.Fatalf("Subject() = %q, want %q", got, want)
	}
}

func TestFetchRequestMatches(t *testing.T) {
	e := baseEvent()
	tests := []struct {
		name string
		req  FetchRequest
		want bool
	}{
		{"empty", FetchRequest{}, true},
		{"machine", FetchRequest{Machine: "host-1"}, true},
		{"other machine", FetchRequest{Machine: "host-2"}, false},
		{"component", FetchRequest{Component: "cache"}, false},
		{"in range", FetchRequest{From: e.Timestamp, To: e.Timestamp.Add(time.Second)}, true},
		{"to exclusive", FetchRequest{To: e.Timestamp}, false},
		{"before from", FetchRequest{From: e.Timestamp.Add(time.Second)}, false},
	}
	for _, tt := range tests {
		if got := tt.req.Matches(e); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
