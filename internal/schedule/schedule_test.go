package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunInvalidSpec(t *testing.T) {
	err := Run(context.Background(), "every now and then", nil, "refresh", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestRunFiresUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "@every 1s", time.UTC, "refresh", func(context.Context) error {
			if runs.Add(1) == 1 {
				return errors.New("feed down")
			}
			return nil
		})
	}()

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times", runs.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunnerReschedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	r := NewRunner("refresh", "0 0 1 1 *", nil, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	if changed, err := r.Reschedule("0 0 1 1 *", time.UTC); err != nil || changed {
		t.Fatalf("same schedule: changed=%v err=%v", changed, err)
	}
	if _, err := r.Reschedule("whenever", time.UTC); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	if changed, err := r.Reschedule("@every 1s", berlin); err != nil || !changed {
		t.Fatalf("new schedule: changed=%v err=%v", changed, err)
	}

	deadline := time.After(5 * time.Second)
	for runs.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("rescheduled job never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
