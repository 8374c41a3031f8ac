package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrisonrobin/tripcal/pkg/auth"
	"github.com/harrisonrobin/tripcal/pkg/colors"
	"github.com/harrisonrobin/tripcal/pkg/config"
	"github.com/harrisonrobin/tripcal/pkg/gcal"
	"github.com/harrisonrobin/tripcal/pkg/index"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/harrisonrobin/tripcal/pkg/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror trips and dated tasks into a Google Calendar",
	Args:  cobra.NoArgs,
	RunE:  withApp(runSync),
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize tripcal with Google Calendar",
	Args:  cobra.NoArgs,
	RunE:  runAuth,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON HTTP API",
	Args:  cobra.NoArgs,
	RunE:  withApp(runServe),
}

var themeCmd = &cobra.Command{
	Use:       "theme [dark|light]",
	Short:     "Show or set the color theme",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"dark", "light"},
	RunE:      runTheme,
}

func init() {
	syncCmd.Flags().String("calendar", "", "calendar name (overrides config)")
	syncCmd.Flags().StringP("mode", "m", string(order.ModePriority), "timeline ordering used for step status")
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
}

func runSync(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	calendarName := a.cfg.Calendar
	if name, _ := cmd.Flags().GetString("calendar"); name != "" {
		calendarName = name
	}
	raw, _ := cmd.Flags().GetString("mode")
	mode, err := order.ParseMode(raw)
	if err != nil {
		return err
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}
	srv, err := auth.NewAuthenticator(dir, a.logger).CalendarService(ctx)
	if err != nil {
		return err
	}
	cal, err := gcal.Open(ctx, srv, calendarName)
	if err != nil {
		return err
	}
	idx, err := index.New(index.Path(dir))
	if err != nil {
		return fmt.Errorf("failed to load event index: %w", err)
	}
	cache, err := colors.NewCache(colors.CachePath(dir))
	if err != nil {
		return fmt.Errorf("failed to load color cache: %w", err)
	}

	syncer := gcal.NewSyncer(cal, idx, cache, a.logger)
	syncer.Mode = mode
	rep, err := syncer.Sync(ctx, a.planner.Tasks(), a.planner.Trips(), a.planner.Today())
	printLine(cmd, fmt.Sprintf("%d created, %d updated, %d unchanged, %d deleted, %d failed",
		rep.Created, rep.Updated, rep.Unchanged, rep.Deleted, rep.Failed))
	return err
}

func runAuth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	dir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("could not find path to configuration file: %w", err)
	}

	a := auth.NewAuthenticator(dir, logger)
	a.Out = cmd.OutOrStdout()
	if err := a.Reset(); err != nil {
		return err
	}
	if _, err := a.CalendarService(cmd.Context()); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	logger.Infof("authentication successful, token saved to %s", dir)
	return nil
}

func runServe(cmd *cobra.Command, _ []string, a *app) error {
	addr := a.cfg.Server.Addr
	if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
		addr = flagAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.New(a.planner, a.logger)
	errc := make(chan error, 1)
	go func() { errc <- s.Start(addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func runTheme(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		theme := "light"
		if cfg.DarkMode {
			theme = "dark"
		}
		printLine(cmd, theme)
		return nil
	}
	if err := config.SetDarkMode(cfg, args[0] == "dark"); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	printLine(cmd, "theme set to "+args[0])
	return nil
}
