package vigil

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/crimson-sun/vigil/internal/config"
	"github.com/crimson-sun/vigil/internal/monitor"
	"github.com/crimson-sun/vigil/internal/output"
	"github.com/crimson-sun/vigil/internal/output/multi"
	"github.com/crimson-sun/vigil/internal/output/stdout"
	"github.com/crimson-sun/vigil/internal/output/throttle"
	"github.com/crimson-sun/vigil/internal/output/webhook"

	// Storage registrations.
	_ "github.com/crimson-sun/vigil/internal/output/file"
	_ "github.com/crimson-sun/vigil/internal/output/memory"
	_ "github.com/crimson-sun/vigil/internal/output/remote"
)

// Config is the file/environment configuration of a Module.
type Config = config.Config

// LoadConfig reads defaults, the optional YAML file at path and VIGIL_*
// environment variables.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// StorageKinds lists the registered storage names.
func StorageKinds() []string { return output.Providers() }

// OpenStorage builds the storage cfg selects.
func OpenStorage(cfg Config) (Storage, error) {
	ctor, err := output.Get(cfg.Storage.Kind)
	if err != nil {
		return nil, fmt.Errorf("vigil: %w", err)
	}
	s, err := ctor(output.StorageConfig{
		Path:     cfg.Storage.Path,
		Endpoint: cfg.Storage.Endpoint,
		Token:    cfg.Storage.Token,
		Capacity: cfg.Storage.Capacity,
		MaxSize:  cfg.Storage.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("vigil: open %s storage: %w", cfg.Storage.Kind, err)
	}
	return s, nil
}

// FromConfig builds a Module with the storage and notification channels cfg
// describes. Each channel fans out to stdout (when enabled) and its webhook
// (when a URL is set); email and SMS webhooks are rate limited.
func FromConfig(cfg Config, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := OpenStorage(cfg)
	if err != nil {
		return nil, err
	}

	verbosity := output.ParseVerbosity(cfg.Notify.Verbosity)
	var console *stdout.Output
	if cfg.Notify.Stdout {
		console = stdout.New(verbosity, false)
	}
	hook := func(url string) *webhook.Output {
		return webhook.New(url,
			webhook.WithVerbosity(verbosity),
			webhook.WithBatchSize(cfg.Notify.BatchSize),
			webhook.WithFlushInterval(cfg.Notify.FlushInterval),
			webhook.WithOnError(func(err error) { logger.Warn("webhook flush failed", "url", url, "error", err) }))
	}
	channel := func(url string, limited bool) *multi.Multi {
		var targets []any
		if console != nil {
			targets = append(targets, console)
		}
		if url != "" {
			var t any = hook(url)
			if limited {
				t = throttle.New(t, cfg.Notify.RatePerSecond, cfg.Notify.Burst, throttle.WithLogger(logger))
			}
			targets = append(targets, t)
		}
		if len(targets) == 0 {
			return nil
		}
		return multi.New(targets...)
	}

	opts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithThresholds(cfg.EscalationThresholds()),
		monitor.WithUpdateInterval(cfg.Monitor.UpdateInterval),
		monitor.WithDrainTimeout(cfg.Monitor.DrainTimeout),
	}
	if n := channel(cfg.Notify.PageURL, false); n != nil {
		opts = append(opts, monitor.WithNotifier(n))
	}
	if n := channel(cfg.Notify.EmailURL, true); n != nil {
		opts = append(opts, monitor.WithEmailNotifier(n))
	}
	if n := channel(cfg.Notify.SmsURL, true); n != nil {
		opts = append(opts, monitor.WithSmsNotifier(n))
	}

	m, err := monitor.New(cfg.Machine, cfg.Module, store, opts...)
	if err != nil {
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, fmt.Errorf("vigil: %w", err)
	}
	return m, nil
}
