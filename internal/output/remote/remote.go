// Package remote is a Storage backed by an HTTP event store.
//
// Store POSTs one event to {base}/events. Fetch GETs {base}/events with the
// request encoded as query parameters and expects a JSON array back.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/crimson-sun/vigil/internal/httpclient"
	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
)

const eventsPath = "/events"

// Storage talks to a remote event store.
type Storage struct {
	client *httpclient.Client
}

// New creates a remote Storage for baseURL authenticating with token.
func New(baseURL, token string, opts ...httpclient.Option) *Storage {
	return &Storage{client: httpclient.New(baseURL, append([]httpclient.Option{httpclient.WithToken(token)}, opts...)...)}
}

func (s *Storage) Store(ctx context.Context, event model.Event) error {
	if err := s.client.Post(ctx, eventsPath, event, nil); err != nil {
		return fmt.Errorf("remote storage: store %s: %w", event.Key, err)
	}
	return nil
}

func (s *Storage) Fetch(ctx context.Context, req output.FetchRequest) ([]model.Event, error) {
	var events []model.Event
	if err := s.client.Get(ctx, eventsPath, fetchQuery(req), &events); err != nil {
		return nil, fmt.Errorf("remote storage: fetch: %w", err)
	}
	return events, nil
}

func fetchQuery(req output.FetchRequest) url.Values {
	q := url.Values{}
	if !req.From.IsZero() {
		q.Set("from", req.From.UTC().Format(time.RFC3339Nano))
	}
	if !req.To.IsZero() {
		q.Set("to", req.To.UTC().Format(time.RFC3339Nano))
	}
	for k, v := range map[string]string{
		"machine":   req.Machine,
		"module":    req.Module,
		"component": req.Component,
		"page_id":   req.PageID,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if req.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(req.PageSize))
	}
	q.Set("forward", strconv.FormatBool(req.Forward))
	return q
}

func init() {
	output.Register("remote", func(cfg output.StorageConfig) (output.Storage, error) {
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("remote storage: endpoint is required")
		}
		return New(cfg.Endpoint, cfg.Token), nil
	})
}
