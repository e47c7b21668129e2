package multi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crimson-sun/vigil/internal/model"
)

// mockNotifier records calls for test assertions. It serves only the notify
// channel.
type mockNotifier struct {
	events []model.Event
	closed bool
	err    error // if set, Notify and Close return this error
}

func (m *mockNotifier) Notify(_ context.Context, event model.Event) error {
	m.events = append(m.events, event)
	return m.err
}

func (m *mockNotifier) Close() error {
	m.closed = true
	return m.err
}

// mockPager serves every channel and records which one was used.
type mockPager struct {
	channels []string
}

func (m *mockPager) Notify(context.Context, model.Event) error {
	m.channels = append(m.channels, "notify")
	return nil
}

func (m *mockPager) NotifyWithEmail(context.Context, model.Event) error {
	m.channels = append(m.channels, "email")
	return nil
}

func (m *mockPager) NotifyWithSms(context.Context, model.Event) error {
	m.channels = append(m.channels, "sms")
	return nil
}

func testEvent(component, title string) model.Event {
	return model.Event{
		Key:       model.EventKey("host-1", "billing", component, title),
		Machine:   "host-1",
		Module:    "billing",
		Component: component,
		Severity:  model.SeverityNotify,
		Timestamp: time.Now(),
		Title:     title,
	}
}

func TestFanOutDeliversToAll(t *testing.T) {
	a := &mockNotifier{}
	b := &mockNotifier{}
	c := &mockNotifier{}
	m := New(a, b, c)

	ev := testEvent("api", "slow request")
	if err := m.Notify(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, out := range []*mockNotifier{a, b, c} {
		if len(out.events) != 1 {
			t.Errorf("target %d: got %d events, want 1", i, len(out.events))
		}
		if out.events[0].Title != "slow request" {
			t.Errorf("target %d: got title %q, want %q", i, out.events[0].Title, "slow request")
		}
	}
}

func TestErrorDoesNotPreventDelivery(t *testing.T) {
	failing := &mockNotifier{err: errors.New("pager unreachable")}
	healthy := &mockNotifier{}
	m := New(failing, healthy)

	err := m.Notify(context.Background(), testEvent("db", "connection refused"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// Healthy target still received the event despite earlier failure.
	if len(healthy.events) != 1 {
		t.Fatalf("healthy target got %d events, want 1", len(healthy.events))
	}
	if len(failing.events) != 1 {
		t.Fatalf("failing target got %d events, want 1", len(failing.events))
	}
}

func TestChannelsOnlyReachImplementers(t *testing.T) {
	logOnly := &mockNotifier{}
	pager := &mockPager{}
	m := New(logOnly, pager)

	ctx := context.Background()
	ev := testEvent("db", "replica lag")
	m.Notify(ctx, ev)
	if err := m.NotifyWithEmail(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.NotifyWithSms(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(logOnly.events) != 1 {
		t.Errorf("notify-only target got %d events, want 1", len(logOnly.events))
	}
	want := []string{"notify", "email", "sms"}
	if len(pager.channels) != len(want) {
		t.Fatalf("pager channels = %v, want %v", pager.channels, want)
	}
	for i := range want {
		if pager.channels[i] != want[i] {
			t.Errorf("pager channel %d = %q, want %q", i, pager.channels[i], want[i])
		}
	}
}

func TestCloseCallsAllTargets(t *testing.T) {
	a := &mockNotifier{}
	b := &mockNotifier{}
	m := New(a, b, &mockPager{})

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.closed || !b.closed {
		t.Errorf("Close not called on all targets: a=%v b=%v", a.closed, b.closed)
	}
}

func TestCloseCollectsErrors(t *testing.T) {
	a := &mockNotifier{err: errors.New("err-a")}
	b := &mockNotifier{err: errors.New("err-b")}
	m := New(a, b)

	err := m.Close()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !a.closed || !b.closed {
		t.Error("Close should be called on all targets even when errors occur")
	}
}
