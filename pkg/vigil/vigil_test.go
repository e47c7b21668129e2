package vigil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewDefaultsToMemoryStorage(t *testing.T) {
	m, err := New("host-1", "billing", WithLogger(quiet), WithUpdateInterval(0))
	require.NoError(t, err)

	require.NoError(t, m.Root().Register(SeverityNotify, "ready", "accepting traffic"))
	require.NoError(t, m.Close(context.Background()))

	events, err := m.Fetch(context.Background(), FetchRequest{Forward: true})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "host-1:billing::ready", events[0].Key)
}

func TestNewRejectsEmptyNames(t *testing.T) {
	_, err := New("", "billing")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStorageKinds(t *testing.T) {
	assert.Equal(t, []string{"file", "memory", "remote"}, StorageKinds())
}

func TestFromConfigFileStorage(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Machine = "host-1"
	cfg.Module = "billing"
	cfg.Storage.Kind = "file"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "events.ndjson")
	cfg.Notify.Stdout = false
	cfg.Monitor.UpdateInterval = 0

	m, err := FromConfig(cfg, quiet)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Root().RegisterRepeat(time.Hour, SeverityNone, "retry", "backing off"))
	}
	require.Eventually(t, func() bool { return m.Stats().Queue.Processed == 1 }, time.Second, 5*time.Millisecond)

	events, err := m.Fetch(context.Background(), FetchRequest{Forward: true})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, m.Close(context.Background()))
}

func TestFromConfigUnknownStorage(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Kind = "tape"
	_, err = FromConfig(cfg, quiet)
	assert.Error(t, err)
}
