package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"timelinecal/internal/capture"
	"timelinecal/internal/datemath"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/render"
	"timelinecal/internal/timeline"
	"timelinecal/internal/tui"
	"timelinecal/internal/view"
)

func tuiCommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Show the timeline in the terminal",
		Flags: append(viewFlags(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs here while the terminal is in use (empty discards them)",
				Value: "timelinecal.log",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level, _ := appLog.ParseLevel(cfg.LogLevel)
			cleanup, err := appLog.SetupFile(cmd.String("log-file"), appLog.Format(cfg.LogFormat), level)
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl, err := newController(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			return tui.Run(ctx, ctrl, tui.WithOverrides(overridesFrom(cmd)))
		},
	}
}

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Print the resolved date profile and its slots",
		Flags: append(viewFlags(),
			&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctrl, err := view.New(cfg)
			if err != nil {
				return err
			}
			dp, tp, err := ctrl.Resolve(time.Now(), overridesFrom(cmd))
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			if cmd.Bool("json") {
				return writeSlotsJSON(out, dp.ViewType, tp)
			}
			return writeSlotsTable(out, dp.ViewType, dp.CurrentRange, tp)
		},
	}
}

type slotJSON struct {
	Index       int    `json:"index"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Label       string `json:"label"`
	IsWeekStart bool   `json:"is_week_start"`
}

func writeSlotsJSON(w io.Writer, viewType string, tp *timeline.Profile) error {
	slots := make([]slotJSON, 0, tp.SlotCount())
	for i := 0; i < tp.SlotCount(); i++ {
		r := tp.SlotRange(i)
		slots = append(slots, slotJSON{
			Index:       i,
			Start:       datemath.FormatMarker(r.Start),
			End:         datemath.FormatMarker(r.End),
			Label:       render.SlotLabel(tp, i),
			IsWeekStart: tp.IsWeekStarts[i],
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"view":           viewType,
		"active_range":   tp.ActiveRange.String(),
		"slot_duration":  tp.SlotDuration,
		"snap_duration":  tp.SnapDuration,
		"snaps_per_slot": tp.SnapsPerSlot,
		"is_time_scale":  tp.IsTimeScale,
		"slots":          slots,
	})
}

func writeSlotsTable(w io.Writer, viewType string, current datemath.Range, tp *timeline.Profile) error {
	fmt.Fprintf(w, "%s  current %s  active %s\n", viewType, current, tp.ActiveRange)
	fmt.Fprintf(w, "slot %s  snap %s (%d per slot)\n", tp.SlotDuration, tp.SnapDuration, tp.SnapsPerSlot)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "START", "END", "LABEL", "WEEK")
	for i := 0; i < tp.SlotCount(); i++ {
		r := tp.SlotRange(i)
		week := ""
		if tp.IsWeekStarts[i] {
			week = "*"
		}
		t.Row(strconv.Itoa(i), datemath.FormatMarker(r.Start), datemath.FormatMarker(r.End), render.SlotLabel(tp, i), week)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Screenshot the timeline page of a running server to PNG",
		Flags: append(viewFlags(),
			&cli.StringFlag{Name: "url", Usage: "Server base URL (defaults to the configured listen address)"},
			&cli.StringFlag{Name: "out", Usage: "Output PNG path", Value: "preview.png"},
			&cli.IntFlag{Name: "width", Usage: "Viewport width", Value: capture.DefaultWidth},
			&cli.IntFlag{Name: "height", Usage: "Viewport height", Value: capture.DefaultHeight},
			&cli.DurationFlag{Name: "timeout", Usage: "Capture timeout", Value: capture.DefaultTimeoutSec * time.Second},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			base := cmd.String("url")
			if base == "" {
				base = "http://" + cfg.Listen
			}
			url, err := capture.PageURL(base, overridesFrom(cmd))
			if err != nil {
				return err
			}
			opts := capture.Options{
				URL:        url,
				OutputPath: cmd.String("out"),
				Width:      int(cmd.Int("width")),
				Height:     int(cmd.Int("height")),
				Timeout:    cmd.Duration("timeout"),
			}
			if cfg.BasicAuth != nil {
				opts.Username, opts.Password = cfg.BasicAuth.Username, cfg.BasicAuth.Password
			}
			return capture.TimelinePNG(ctx, opts)
		},
	}
}
