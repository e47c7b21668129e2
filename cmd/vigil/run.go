package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/vigil/internal/config"
	"github.com/crimson-sun/vigil/internal/counter"
	"github.com/crimson-sun/vigil/internal/export"
	"github.com/crimson-sun/vigil/internal/logging"
	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/monitor"
	"github.com/crimson-sun/vigil/internal/syscounter"
	"github.com/crimson-sun/vigil/pkg/vigil"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Monitor this host until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	m, err := vigil.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	attachSystemCounters(m.Root(), logger)
	beat, err := attachSelf(m.Root())
	if err != nil {
		_ = m.Close(context.Background())
		return err
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			export.New(m),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	_ = m.Root().ChangeState("running", "lifecycle", fmt.Sprintf("vigil %s pid %d", version, os.Getpid()))
	logger.Info("vigil: started", "machine", cfg.Machine, "module", cfg.Module,
		"storage", cfg.Storage.Kind, "metrics", cfg.Metrics.Addr)

	heartbeat := cfg.Monitor.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	t := time.NewTicker(heartbeat)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-t.C:
			_ = beat.Increment()
			_ = m.Root().RegisterRepeat(time.Hour, model.SeverityNone, "heartbeat", "vigil is alive")
		}
	}

	logger.Info("vigil: shutting down")
	_ = m.Root().ChangeState("stopped", "lifecycle", "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Monitor.DrainTimeout+5*time.Second)
	defer cancel()
	var errs []error
	if srv != nil {
		errs = append(errs, srv.Shutdown(shutdownCtx))
	}
	errs = append(errs, m.Close(shutdownCtx))
	return errors.Join(errs...)
}

// attachSystemCounters puts every OS counter under a "system" component,
// grouped by category. Counters whose source cannot be opened are skipped.
func attachSystemCounters(root *monitor.Node, logger *slog.Logger) {
	sys, err := root.AttachComponentWithSeverity("system", model.SeverityNone)
	if err != nil {
		logger.Warn("system counters unavailable", "error", err)
		return
	}
	groups := map[string]*monitor.Node{}
	for _, d := range syscounter.Descriptors() {
		g, ok := groups[d.Category]
		if !ok {
			if g, err = sys.AttachComponent(d.Category); err != nil {
				logger.Warn("system counter group", "category", d.Category, "error", err)
				continue
			}
			groups[d.Category] = g
		}
		src, err := d.Source()
		if err != nil {
			logger.Warn("system counter skipped", "counter", d.Name, "error", err)
			continue
		}
		if _, err := g.AttachSystemCounter(d.Name, d.Type, src); err != nil {
			logger.Warn("system counter skipped", "counter", d.Name, "error", err)
		}
	}
}

// attachSelf records vigil's own uptime, version and heartbeat count.
func attachSelf(root *monitor.Node) (*counter.NumericCounter, error) {
	self, err := root.AttachComponentWithSeverity("self", model.SeverityNone)
	if err != nil {
		return nil, err
	}
	uptime, err := self.AttachNumericCounter("uptime", counter.ElapsedTime)
	if err != nil {
		return nil, err
	}
	if err := uptime.SetRawTime(time.Now()); err != nil {
		return nil, err
	}
	ver, err := self.AttachStringCounter("version")
	if err != nil {
		return nil, err
	}
	if err := ver.SetValue(version); err != nil {
		return nil, err
	}
	return self.AttachNumericCounter("heartbeats", counter.CountOfItems)
}
