package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/tripcal/pkg/autosave"
	"github.com/harrisonrobin/tripcal/pkg/config"
	"github.com/harrisonrobin/tripcal/pkg/logging"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/planner"
	"github.com/harrisonrobin/tripcal/pkg/render"
	"github.com/harrisonrobin/tripcal/pkg/store"
	"github.com/harrisonrobin/tripcal/pkg/store/dsstore"
	"github.com/harrisonrobin/tripcal/pkg/store/filestore"
	"github.com/harrisonrobin/tripcal/pkg/store/sqlstore"
	"github.com/spf13/cobra"
)

// app is what most commands need: config, logger, a loaded planner and a
// renderer for the command's output stream.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	planner *planner.Planner
	out     *render.Renderer
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *log.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(os.Stderr, logging.Options{
		Level:  level,
		Format: cfg.LogFormat,
	})
}

func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverFile:
		logger.Debugf("using file store %s", cfg.Store.Path)
		return filestore.Open(cfg.Store.Path)
	case config.DriverSQLite, config.DriverPostgres:
		logger.Debugf("using %s store", cfg.Store.Driver)
		return sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	case config.DriverDatastore:
		logger.Debugf("using datastore project %s", cfg.Store.ProjectID)
		return dsstore.Open(ctx, cfg.Store.ProjectID, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	delay, err := cfg.Delay()
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	p := planner.New(st, cfg.Owner, planner.Options{
		Autosave: autosave.NewScheduler(delay),
		Logger:   logger,
	})
	if err := p.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		planner: p,
		out:     render.New(cmd.OutOrStdout(), cfg.DarkMode),
	}, nil
}

func (a *app) Close() error {
	return a.planner.Close()
}

// withApp opens the app around run and closes it afterwards, keeping the
// first error.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return run(cmd, args, a)
	}
}

// dateFlag parses an optional YYYY-MM-DD flag value; empty means nil.
func dateFlag(raw string) (*model.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func printLine(cmd *cobra.Command, s string) {
	fmt.Fprintln(cmd.OutOrStdout(), s)
}
