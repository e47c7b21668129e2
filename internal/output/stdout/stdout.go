// Package stdout is the "log" notification channel: JSON lines on stdout.
package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

// Output writes JSON-encoded notifications to stdout (or another writer).
// It serves the notify, email and sms channels alike.
type Output struct {
	mu        sync.Mutex
	enc       *json.Encoder
	verbosity output.Verbosity
}

// New creates a new stdout Output with verbosity-aware field omission
// and optional pretty-printed JSON.
func New(verbosity output.Verbosity, pretty bool) *Output {
	return NewWriter(os.Stdout, verbosity, pretty)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, verbosity output.Verbosity, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{enc: enc, verbosity: verbosity}
}

func (o *Output) Notify(_ context.Context, event model.Event) error {
	return o.write(output.ChannelNotify, event)
}

func (o *Output) NotifyWithEmail(_ context.Context, event model.Event) error {
	return o.write(output.ChannelEmail, event)
}

func (o *Output) NotifyWithSms(_ context.Context, event model.Event) error {
	return o.write(output.ChannelSms, event)
}

func (o *Output) write(ch output.Channel, event model.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(output.NewNotification(ch, event, o.verbosity)); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
