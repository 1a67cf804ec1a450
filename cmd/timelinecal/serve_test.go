package main

import (
	"context"
	"testing"
	"time"

	"timelinecal/internal/config"
	"timelinecal/internal/schedule"
	"timelinecal/internal/sse"
	"timelinecal/internal/view"
	"timelinecal/internal/web"
)

func TestApplyReloadMovesRefreshSchedule(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.LogLevel = "error"
	ctrl, err := view.New(cfg)
	if err != nil {
		t.Fatalf("view.New: %v", err)
	}
	broker := sse.NewBroker(0)
	defer broker.Close()
	server := web.NewServer(ctrl, broker, web.Options{})
	refresh := schedule.NewRunner("refresh", cfg.RefreshCron, ctrl.Env().Location, func(context.Context) error { return nil })

	next := config.DefaultConfig()
	next.LogLevel = "error"
	next.RefreshCron = "0 * * * *"
	next.Timezone = "Asia/Seoul"
	if err := applyReload(context.Background(), ctrl, server, broker, refresh, next, cfg.Listen); err != nil {
		t.Fatalf("applyReload: %v", err)
	}

	if changed, err := refresh.Reschedule("0 * * * *", seoul); err != nil || changed {
		t.Errorf("schedule after reload: changed=%v err=%v, want the reloaded spec and zone", changed, err)
	}

	// A reload with a broken cron keeps the schedule and still applies.
	broken := config.DefaultConfig()
	broken.LogLevel = "error"
	broken.RefreshCron = "every hour"
	if err := applyReload(context.Background(), ctrl, server, broker, refresh, broken, cfg.Listen); err != nil {
		t.Fatalf("applyReload: %v", err)
	}
	if changed, _ := refresh.Reschedule("0 * * * *", seoul); changed {
		t.Error("invalid cron replaced the schedule")
	}
}
