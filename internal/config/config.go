// Package config loads vigil settings from defaults, an optional YAML file
// and VIGIL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/crimson-sun/vigil/internal/escalate"
	"github.com/crimson-sun/vigil/internal/model"
)

// Config holds all vigil configuration.
type Config struct {
	Machine    string          `mapstructure:"machine"`
	Module     string          `mapstructure:"module"`
	Log        LogConfig       `mapstructure:"log"`
	Monitor    MonitorConfig   `mapstructure:"monitor"`
	Thresholds ThresholdConfig `mapstructure:"thresholds"`
	Storage    StorageConfig   `mapstructure:"storage"`
	Notify     NotifyConfig    `mapstructure:"notify"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// MonitorConfig holds module runtime settings.
type MonitorConfig struct {
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
}

// ThresholdConfig holds the lower bound of each severity band.
type ThresholdConfig struct {
	Fatal           int `mapstructure:"fatal"`
	Notify          int `mapstructure:"notify"`
	NotifyWithEmail int `mapstructure:"notify_email"`
	NotifyWithSms   int `mapstructure:"notify_sms"`
	ErrorWithEmail  int `mapstructure:"error_email"`
	ErrorWithSms    int `mapstructure:"error_sms"`
}

// StorageConfig selects and configures the event store.
type StorageConfig struct {
	Kind     string `mapstructure:"kind"` // "memory", "file" or "remote"
	Path     string `mapstructure:"path"`
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
	Capacity int    `mapstructure:"capacity"`
	MaxSize  int64  `mapstructure:"max_size"`
}

// NotifyConfig configures the notification channels. An empty URL leaves
// that channel on stdout when Stdout is set, or disabled otherwise.
type NotifyConfig struct {
	Stdout        bool          `mapstructure:"stdout"`
	Verbosity     string        `mapstructure:"verbosity"`
	PageURL       string        `mapstructure:"page_url"`
	EmailURL      string        `mapstructure:"email_url"`
	SmsURL        string        `mapstructure:"sms_url"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	v.SetDefault("machine", host)
	v.SetDefault("module", "vigil")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitor.update_interval", time.Second)
	v.SetDefault("monitor.drain_timeout", 5*time.Second)
	v.SetDefault("monitor.heartbeat", 30*time.Second)

	d := escalate.DefaultThresholds()
	v.SetDefault("thresholds.fatal", int(d.Fatal))
	v.SetDefault("thresholds.notify", int(d.Notify))
	v.SetDefault("thresholds.notify_email", int(d.NotifyWithEmail))
	v.SetDefault("thresholds.notify_sms", int(d.NotifyWithSms))
	v.SetDefault("thresholds.error_email", int(d.ErrorWithEmail))
	v.SetDefault("thresholds.error_sms", int(d.ErrorWithSms))

	v.SetDefault("storage.kind", "memory")
	v.SetDefault("storage.path", "vigil-events.ndjson")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.token", "")
	v.SetDefault("storage.capacity", 10000)
	v.SetDefault("storage.max_size", 0)

	v.SetDefault("notify.stdout", true)
	v.SetDefault("notify.verbosity", "standard")
	v.SetDefault("notify.page_url", "")
	v.SetDefault("notify.email_url", "")
	v.SetDefault("notify.sms_url", "")
	v.SetDefault("notify.rate_per_second", 1.0)
	v.SetDefault("notify.burst", 5)
	v.SetDefault("notify.batch_size", 50)
	v.SetDefault("notify.flush_interval", 5*time.Second)

	v.SetDefault("metrics.addr", ":9464")
}

// Load reads configuration. path may be empty; a named file that does not
// exist is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EscalationThresholds converts the configured bands.
func (c Config) EscalationThresholds() escalate.Thresholds {
	t := c.Thresholds
	return escalate.Thresholds{
		Fatal:           model.Severity(t.Fatal),
		Notify:          model.Severity(t.Notify),
		NotifyWithEmail: model.Severity(t.NotifyWithEmail),
		NotifyWithSms:   model.Severity(t.NotifyWithSms),
		ErrorWithEmail:  model.Severity(t.ErrorWithEmail),
		ErrorWithSms:    model.Severity(t.ErrorWithSms),
	}
}

// Validate checks the fields a Module cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Machine) == "" {
		errs = append(errs, errors.New("machine is empty"))
	}
	if strings.TrimSpace(c.Module) == "" {
		errs = append(errs, errors.New("module is empty"))
	}
	if c.Monitor.UpdateInterval < 0 {
		errs = append(errs, errors.New("monitor.update_interval is negative"))
	}
	if err := c.EscalationThresholds().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.Kind == "remote" && c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("storage.endpoint is required for remote storage"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
