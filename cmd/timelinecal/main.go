package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"timelinecal/internal/config"
	"timelinecal/internal/ics"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/view"
)

const version = "0.1.0"

func main() {
	cmd := &cli.Command{
		Name:    "timelinecal",
		Usage:   "Resource timeline calendar: web, terminal and PNG renderings of ICS feeds",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/timelinecal.yaml",
				Value:       "config/timelinecal.yaml",
				Sources:     cli.EnvVars("TIMELINECAL_CONFIG"),
			},
			&cli.DurationFlag{
				Name:  "feed-ttl",
				Usage: "How long fetched ICS feeds are reused",
				Value: 5 * time.Minute,
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			tuiCommand(),
			slotsCommand(),
			captureCommand(),
		},
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := cmd.Run(ctx, os.Args); err != nil {
		appLog.Error("application error", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// loadConfig reads the --config file and applies its logging settings.
func loadConfig(cmd *cli.Command) (*config.Config, string, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func setupLogging(cfg *config.Config) error {
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	appLog.Setup(os.Stderr, appLog.Format(cfg.LogFormat), level)
	return nil
}

// newController builds the controller with an ICS loader and fetches the
// feeds once. A failed first fetch is logged; the loader retries on the
// next refresh.
func newController(ctx context.Context, cmd *cli.Command, cfg *config.Config) (*view.Controller, error) {
	loader := ics.NewLoader(ics.NewFetcher(cfg.CacheDir, nil), cmd.Duration("feed-ttl"))
	ctrl, err := view.New(cfg, view.WithEvents(loader))
	if err != nil {
		return nil, err
	}
	if err := ctrl.Refresh(ctx); err != nil {
		appLog.Warn("initial feed refresh failed", "error", err.Error())
	}
	return ctrl, nil
}

// viewFlags select the rendered view, shared by every command that draws.
func viewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "view", Usage: "View type, e.g. resourceTimelineWeek"},
		&cli.StringFlag{Name: "date", Usage: "Date to show, e.g. 2017-06-07"},
		&cli.StringFlag{Name: "slot", Usage: "Slot duration, e.g. 00:30 or 1d"},
		&cli.StringFlag{Name: "snap", Usage: "Snap duration"},
		&cli.StringFlag{Name: "start", Usage: "Visible range start"},
		&cli.StringFlag{Name: "end", Usage: "Visible range end (exclusive)"},
		&cli.IntFlag{Name: "shift", Usage: "Steps forward (positive) or back (negative) from the date"},
	}
}

func overridesFrom(cmd *cli.Command) view.Overrides {
	return view.Overrides{
		View:  cmd.String("view"),
		Date:  cmd.String("date"),
		Slot:  cmd.String("slot"),
		Snap:  cmd.String("snap"),
		Start: cmd.String("start"),
		End:   cmd.String("end"),
		Shift: int(cmd.Int("shift")),
	}
}
