package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

func testEvent() model.Event {
	return model.Event{
		Key:         "host-1:billing:db:connection refused",
		Machine:     "host-1",
		Module:      "billing",
		Component:   "db",
		Severity:    model.SeverityNotify,
		Timestamp:   time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
		Title:       "connection refused",
		Description: model.NewText("dial tcp 10.0.0.5:5432"),
		Err:         errors.New("ECONNREFUSED"),
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Standard, false)
		out.Notify(context.Background(), testEvent())
	})

	// Should be single line (NDJSON).
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var n output.Notification
	if err := json.Unmarshal([]byte(lines[0]), &n); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if n.Channel != output.ChannelNotify {
		t.Fatalf("expected channel=notify, got %v", n.Channel)
	}
	if n.Event.Title != "connection refused" {
		t.Fatalf("expected title preserved, got %q", n.Event.Title)
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Standard, true)
	out.NotifyWithEmail(context.Background(), testEvent())

	result := buf.String()
	if !strings.Contains(result, "  ") {
		t.Fatal("expected indented output for pretty mode")
	}
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected multi-line pretty output, got %d lines", len(lines))
	}
}

func TestOutputChannels(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Standard, false)
	ctx := context.Background()
	out.Notify(ctx, testEvent())
	out.NotifyWithEmail(ctx, testEvent())
	out.NotifyWithSms(ctx, testEvent())

	var got []output.Channel
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		got = append(got, output.Channel(m["channel"].(string)))
	}
	want := []output.Channel{output.ChannelNotify, output.ChannelEmail, output.ChannelSms}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d channel = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOutputMinimalOmitsFields(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Minimal, false)
	out.NotifyWithSms(context.Background(), testEvent())

	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	ev := m["event"].(map[string]any)

	if _, ok := ev["description"]; ok {
		t.Fatal("description should be omitted at Minimal")
	}
	if _, ok := ev["error"]; ok {
		t.Fatal("error should be omitted at Minimal")
	}
	if ev["title"] != "connection refused" {
		t.Fatalf("title should be preserved, got %v", ev["title"])
	}
}
