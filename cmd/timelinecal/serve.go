package main

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"timelinecal/internal/capture"
	"timelinecal/internal/config"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/schedule"
	"timelinecal/internal/sse"
	"timelinecal/internal/view"
	"timelinecal/internal/watch"
	"timelinecal/internal/web"
)

const shutdownGrace = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the timeline over HTTP and refresh feeds on a schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
			&cli.StringFlag{Name: "preview", Usage: "Capture a PNG here after every refresh and serve it at /preview.png"},
			&cli.BoolFlag{Name: "no-watch", Usage: "Do not reload the config file when it changes"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen := cmd.String("listen"); listen != "" {
		cfg.Listen = listen
	}
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"initial_view", cfg.InitialView,
		"refresh", cfg.RefreshCron,
		"resources", len(cfg.Resources),
		"ics_count", len(cfg.ICS),
	)

	ctrl, err := newController(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	preview := cmd.String("preview")
	server := web.NewServer(ctrl, broker, web.Options{PreviewPath: preview})

	// snapshotPNG refreshes the preview image from the served page.
	snapshotPNG := func(ctx context.Context) {
		if preview == "" {
			return
		}
		if err := capturePreview(ctx, ctrl.Config(), "http://"+cfg.Listen, preview); err != nil {
			appLog.Error("preview capture failed", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Listen, shutdownGrace)
	})

	refresh := schedule.NewRunner("refresh", cfg.RefreshCron, ctrl.Env().Location, func(ctx context.Context) error {
		if err := ctrl.Refresh(ctx); err != nil {
			return err
		}
		server.Invalidate()
		broker.PublishRefresh("cron")
		snapshotPNG(ctx)
		return nil
	})
	g.Go(func() error {
		return refresh.Run(gctx)
	})

	if !cmd.Bool("no-watch") {
		g.Go(func() error {
			return watch.Config(gctx, path, watch.DefaultDebounce, func(next *config.Config) error {
				return applyReload(gctx, ctrl, server, broker, refresh, next, cfg.Listen)
			})
		})
	}

	// First preview once the listener is up.
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-time.After(time.Second):
			snapshotPNG(gctx)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	appLog.Info("timelinecal exiting")
	return nil
}

// applyReload swaps in a reloaded config and moves the refresh schedule to
// its cron spec and timezone. The listen address only changes on restart.
func applyReload(ctx context.Context, ctrl *view.Controller, server *web.Server, broker *sse.Broker, refresh *schedule.Runner, next *config.Config, listen string) error {
	if next.Listen != listen {
		appLog.Warn("listen address change needs a restart", "current", listen, "configured", next.Listen)
	}
	if err := ctrl.SetConfig(next); err != nil {
		return err
	}
	changed, err := refresh.Reschedule(next.RefreshCron, ctrl.Env().Location)
	if err != nil {
		appLog.Warn("keeping previous refresh schedule", "error", err.Error())
	} else if changed {
		appLog.Info("refresh schedule changed", "refresh", next.RefreshCron, "timezone", next.Timezone)
	}
	if err := setupLogging(next); err != nil {
		appLog.Warn("keeping previous log settings", "error", err.Error())
	}
	if err := ctrl.Refresh(ctx); err != nil {
		appLog.Warn("feed refresh after reload failed", "error", err.Error())
	}
	server.Invalidate()
	broker.Publish(sse.Event{Type: sse.TypeConfigReloaded, Data: map[string]string{
		"timezone":     next.Timezone,
		"initial_view": next.InitialView,
	}})
	return nil
}

func capturePreview(ctx context.Context, cfg *config.Config, base, out string) error {
	url, err := capture.PageURL(base, view.Overrides{})
	if err != nil {
		return err
	}
	opts := capture.Options{URL: url, OutputPath: out}
	if cfg.BasicAuth != nil {
		opts.Username, opts.Password = cfg.BasicAuth.Username, cfg.BasicAuth.Password
	}
	return capture.TimelinePNG(ctx, opts)
}
