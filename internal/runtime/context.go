// Package runtime assembles the configuration, store, output and jobs a
// laraflow command runs with.
package runtime

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/deadline"
	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/notify"
	"github.com/laraflow/laraflow/internal/output"
	"github.com/laraflow/laraflow/internal/repo"
	"github.com/laraflow/laraflow/internal/retention"
	"github.com/laraflow/laraflow/internal/sqlstore"
	"github.com/laraflow/laraflow/internal/storage"
)

// InMemory is the storage path that selects an in-memory Badger store.
const InMemory = ":memory:"

// Context holds the application runtime context.
type Context struct {
	Config  *config.Config
	Store   repo.Store
	Printer *output.Printer
	Metrics *metrics.Collector
	Logger  *slog.Logger

	// Now is the clock shared by the jobs.
	Now func() time.Time

	Debug bool
}

// Options configures the runtime context. Non-empty fields override the
// loaded configuration.
type Options struct {
	ConfigPath string
	Driver     string
	DSN        string
	Format     output.Format
	ColorMode  output.ColorMode
	Debug      bool
}

// DefaultOptions returns default runtime options.
func DefaultOptions() Options {
	return Options{
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
	}
}

// LoadConfig loads and validates the configuration with flag overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Driver != "" {
		cfg.Storage.Driver = opts.Driver
	}
	if opts.DSN != "" {
		if cfg.Storage.Driver == config.DriverBadger {
			cfg.Storage.Path = opts.DSN
		} else {
			cfg.Storage.DSN = opts.DSN
		}
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New loads the configuration, configures logging and opens the store.
func New(ctx context.Context, opts Options) (*Context, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg, opts)
}

// NewWithConfig builds a context from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config, opts Options) (*Context, error) {
	c := NewWithoutStore(cfg, opts)
	if err := c.Open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithoutStore builds a context for commands that never touch the store,
// such as daemon control. Badger allows a single writer process, so these
// must not open it while the daemon runs.
func NewWithoutStore(cfg *config.Config, opts Options) *Context {
	initLogging(cfg, opts.Debug)

	formatter := output.NewFormatter()
	formatter.Format = opts.Format
	formatter.ColorMode = opts.ColorMode
	formatter.Location = cfg.Location()

	return &Context{
		Config:  cfg,
		Printer: output.NewPrinter(formatter),
		Logger:  logging.Logger(),
		Now:     time.Now,
		Debug:   opts.Debug,
	}
}

func initLogging(cfg *config.Config, debug bool) {
	if debug {
		logging.InitDebug()
		return
	}
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
		lc.Level = level
	}
	lc.JSON = cfg.Log.JSON
	logging.Init(lc)
}

// DefaultSQLitePath returns the default SQLite database file.
func DefaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, model.AppName, model.AppName+".db")
}

// OpenStore opens the backend selected by the storage config.
func OpenStore(ctx context.Context, sc config.StorageConfig) (repo.Store, error) {
	switch sc.Driver {
	case config.DriverBadger, "":
		opts := storage.Options{Path: sc.Path}
		switch sc.Path {
		case InMemory:
			opts = storage.Options{InMemory: true}
		case "":
			opts.Path = storage.DefaultPath()
		}
		s, err := storage.OpenStore(opts)
		if err != nil {
			return nil, StoreOpenError(opts.Path, err)
		}
		return s, nil

	case config.DriverSQLite:
		dsn := sc.DSN
		if dsn == "" {
			dsn = DefaultSQLitePath()
		}
		if dsn != InMemory {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
				return nil, StoreOpenError(dsn, err)
			}
		}
		s, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn)
		if err != nil {
			return nil, StoreOpenError(dsn, err)
		}
		return s, nil

	case config.DriverPostgres:
		s, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, sc.DSN)
		if err != nil {
			return nil, StoreOpenError(logging.MaskDSN(sc.DSN), err)
		}
		return s, nil

	default:
		return nil, errors.NewUserErrorWithField("driver", sc.Driver,
			"unknown storage driver", "Use badger, sqlite or postgres.")
	}
}

// Open opens the configured store unless it is already open.
func (c *Context) Open(ctx context.Context) error {
	if c.Store != nil {
		return nil
	}
	store, err := OpenStore(ctx, c.Config.Storage)
	if err != nil {
		return err
	}
	c.Store = store
	return nil
}

// Close closes the store. Closing twice is a no-op.
func (c *Context) Close() error {
	if c.Store == nil {
		return nil
	}
	err := c.Store.Close()
	c.Store = nil
	return err
}

// Dispatcher builds a webhook dispatcher from the http config.
func (c *Context) Dispatcher() *notify.Dispatcher {
	return notify.NewDispatcher(c.Store,
		notify.WithHTTPClient(notify.NewHTTPClientFromConfig(c.Config.HTTP)),
		notify.WithMetrics(c.Metrics),
		notify.WithClock(c.Now),
	)
}

// Sweeper builds the retention sweeper.
func (c *Context) Sweeper() *retention.Sweeper {
	s := retention.NewSweeper(c.Store, c.Metrics)
	s.Now = c.Now
	return s
}

// Notifier builds the deadline notifier delivering through the dispatcher.
func (c *Context) Notifier() *deadline.Notifier {
	n := deadline.NewNotifier(c.Store, c.Dispatcher(), c.Metrics)
	n.Now = c.Now
	return n
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Printer.Format == output.FormatJSON
}

// IsCLI returns true if output format is CLI.
func (c *Context) IsCLI() bool {
	return c.Printer.Format == output.FormatCLI
}
