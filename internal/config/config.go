// Package config loads Laraflow configuration from an optional YAML file
// and LARAFLOW_* environment variables. A Config value is passed explicitly
// to every job; there is no global accessor.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/model"
)

// Storage drivers.
const (
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full application configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Deadlines DeadlineConfig  `yaml:"deadlines"`
	HTTP      HTTPConfig      `yaml:"http"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is badger, sqlite or postgres.
	Driver string `yaml:"driver" env:"LARAFLOW_STORAGE_DRIVER" env-default:"badger"`
	// Path is the Badger directory. Empty uses the XDG data directory.
	Path string `yaml:"path" env:"LARAFLOW_STORAGE_PATH"`
	// DSN is the SQL data source (file path for sqlite, URL for postgres).
	DSN string `yaml:"dsn" env:"LARAFLOW_STORAGE_DSN"`
}

// RetentionConfig configures the trash sweep.
type RetentionConfig struct {
	Days        int      `yaml:"days" env:"LARAFLOW_RETENTION_DAYS" env-default:"7"`
	BatchSize   int      `yaml:"batch_size" env:"LARAFLOW_RETENTION_BATCH_SIZE" env-default:"100"`
	EntityTypes []string `yaml:"entity_types" env:"LARAFLOW_RETENTION_ENTITY_TYPES" env-default:"tasks,lists,projects"`
	Schedule    string   `yaml:"schedule" env:"LARAFLOW_RETENTION_SCHEDULE" env-default:"0 3 * * *"`
}

// DeadlineConfig configures deadline notifications.
type DeadlineConfig struct {
	DueSoonOffsets []int  `yaml:"due_soon_offsets" env:"LARAFLOW_DEADLINES_DUE_SOON" env-default:"24"`
	OverdueOffsets []int  `yaml:"overdue_offsets" env:"LARAFLOW_DEADLINES_OVERDUE" env-default:"1,24"`
	Schedule       string `yaml:"schedule" env:"LARAFLOW_DEADLINES_SCHEDULE" env-default:"0 * * * *"`
	// Timezone interprets task due dates and times.
	Timezone string `yaml:"timezone" env:"LARAFLOW_DEADLINES_TIMEZONE" env-default:"UTC"`
}

// HTTPConfig configures outgoing webhook delivery.
type HTTPConfig struct {
	Timeout     time.Duration   `yaml:"timeout" env:"LARAFLOW_HTTP_TIMEOUT" env-default:"30s"`
	MaxRetries  int             `yaml:"max_retries" env:"LARAFLOW_HTTP_MAX_RETRIES" env-default:"3"`
	RetryDelays []time.Duration `yaml:"retry_delays" env:"LARAFLOW_HTTP_RETRY_DELAYS" env-default:"0s,5s,30s"`
}

// DaemonConfig configures the background scheduler process.
type DaemonConfig struct {
	// MetricsAddr serves /metrics and /healthz. Empty disables the listener.
	MetricsAddr string        `yaml:"metrics_addr" env:"LARAFLOW_DAEMON_METRICS_ADDR" env-default:"127.0.0.1:9477"`
	StartupWait time.Duration `yaml:"startup_wait" env:"LARAFLOW_DAEMON_STARTUP_WAIT" env-default:"500ms"`
	KillTimeout time.Duration `yaml:"kill_timeout" env:"LARAFLOW_DAEMON_KILL_TIMEOUT" env-default:"5s"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `yaml:"level" env:"LARAFLOW_LOG_LEVEL" env-default:"info"`
	JSON  bool   `yaml:"json" env:"LARAFLOW_LOG_JSON"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, model.AppName, "config.yaml")
}

// Default returns the configuration built from defaults and environment only.
func Default() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	return &cfg, nil
}

// Load reads the config file at path, then applies environment overrides
// and defaults. An empty path falls back to DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default()
		}
		return nil, &errors.UserError{
			Message:    fmt.Sprintf("cannot read config file %s", path),
			Suggestion: "Check the --config path.",
			Cause:      err,
		}
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, &errors.UserError{
			Message:    fmt.Sprintf("invalid config file %s: %v", path, err),
			Suggestion: "Run 'laraflow config show' to see the expected layout.",
			Cause:      errors.ErrInvalidConfig,
		}
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var problems []error

	switch c.Storage.Driver {
	case DriverBadger, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			problems = append(problems, fmt.Errorf("storage.dsn is required for postgres"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.Retention.Days < 0 {
		problems = append(problems, fmt.Errorf("retention.days must not be negative"))
	}
	if c.Retention.BatchSize <= 0 {
		problems = append(problems, fmt.Errorf("retention.batch_size must be positive"))
	}
	if err := validateSchedule("retention.schedule", c.Retention.Schedule); err != nil {
		problems = append(problems, err)
	}

	for _, o := range c.Deadlines.DueSoonOffsets {
		if o <= 0 {
			problems = append(problems, fmt.Errorf("deadlines.due_soon_offsets must be positive, got %d", o))
		}
	}
	for _, o := range c.Deadlines.OverdueOffsets {
		if o <= 0 {
			problems = append(problems, fmt.Errorf("deadlines.overdue_offsets must be positive, got %d", o))
		}
	}
	if _, err := time.LoadLocation(c.Deadlines.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("deadlines.timezone: %w", err))
	}
	if err := validateSchedule("deadlines.schedule", c.Deadlines.Schedule); err != nil {
		problems = append(problems, err)
	}

	if c.HTTP.Timeout <= 0 {
		problems = append(problems, fmt.Errorf("http.timeout must be positive"))
	}
	if c.HTTP.MaxRetries < 0 {
		problems = append(problems, fmt.Errorf("http.max_retries must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Errorf("log.level: %w", err))
	}

	if len(problems) == 0 {
		return nil
	}
	return &errors.UserError{
		Message:    "invalid configuration: " + stderrors.Join(problems...).Error(),
		Suggestion: "Fix the listed settings in the config file or LARAFLOW_* environment.",
		Cause:      errors.ErrInvalidConfig,
	}
}

func validateSchedule(field, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// Location returns the deadline timezone, UTC when unset or invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Deadlines.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EntityTypes returns the configured sweep order as entity types. Names are
// passed through unparsed so the sweeper can report unknown ones.
func (c *Config) EntityTypes() []model.EntityType {
	types := make([]model.EntityType, 0, len(c.Retention.EntityTypes))
	for _, name := range c.Retention.EntityTypes {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if et, err := model.ParseEntityType(name); err == nil {
			types = append(types, et)
			continue
		}
		types = append(types, model.EntityType(name))
	}
	return types
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Storage.DSN = logging.MaskDSN(c.Storage.DSN)
	return &cp
}

// YAML renders the redacted configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

// MarshalYAML renders durations as strings such as "30s".
func (h HTTPConfig) MarshalYAML() (any, error) {
	delays := make([]string, len(h.RetryDelays))
	for i, d := range h.RetryDelays {
		delays[i] = d.String()
	}
	return struct {
		Timeout     string   `yaml:"timeout"`
		MaxRetries  int      `yaml:"max_retries"`
		RetryDelays []string `yaml:"retry_delays"`
	}{h.Timeout.String(), h.MaxRetries, delays}, nil
}

// MarshalYAML renders durations as strings such as "5s".
func (d DaemonConfig) MarshalYAML() (any, error) {
	return struct {
		MetricsAddr string `yaml:"metrics_addr"`
		StartupWait string `yaml:"startup_wait"`
		KillTimeout string `yaml:"kill_timeout"`
	}{d.MetricsAddr, d.StartupWait.String(), d.KillTimeout.String()}, nil
}
