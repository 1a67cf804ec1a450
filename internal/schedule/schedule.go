// Package schedule runs the periodic refresh of the timeline.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "timelinecal/internal/log"
)

// Job is one scheduled run. ctx is cancelled on shutdown.
type Job func(ctx context.Context) error

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

// Run executes job on the standard five-field cron spec, evaluated in loc,
// until ctx is cancelled. A run still in progress when the next one is due
// makes the next one skip. Job errors are logged and do not stop the
// schedule.
func Run(ctx context.Context, spec string, loc *time.Location, name string, job Job) error {
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(spec, func() {
		started := time.Now()
		if err := job(ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Info("scheduled job done", "job", name, "elapsed", time.Since(started).String())
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	c.Start()
	appLog.Info("schedule started", "job", name, "spec", spec, "next", c.Entry(id).Next.Format(time.RFC3339))

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("schedule stopped", "job", name)
	return nil
}

// Runner keeps one job on a schedule that can be replaced while it runs.
type Runner struct {
	name string
	job  Job

	mu      sync.Mutex
	spec    string
	loc     *time.Location
	changed chan struct{}
}

func NewRunner(name, spec string, loc *time.Location, job Job) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{name: name, job: job, spec: spec, loc: loc, changed: make(chan struct{}, 1)}
}

// Reschedule switches the job to spec evaluated in loc. It reports whether
// anything changed; an invalid spec leaves the current schedule running.
func (r *Runner) Reschedule(spec string, loc *time.Location) (bool, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return false, fmt.Errorf("schedule %s: %w", r.name, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	r.mu.Lock()
	if spec == r.spec && loc.String() == r.loc.String() {
		r.mu.Unlock()
		return false, nil
	}
	r.spec, r.loc = spec, loc
	r.mu.Unlock()

	select {
	case r.changed <- struct{}{}:
	default:
	}
	return true, nil
}

// Run keeps the job scheduled, restarting the cron whenever Reschedule
// changes it, until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		r.mu.Lock()
		spec, loc := r.spec, r.loc
		r.mu.Unlock()

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- Run(runCtx, spec, loc, r.name, r.job) }()

		select {
		case err := <-done:
			cancel()
			return err
		case <-r.changed:
			cancel()
			<-done
			appLog.Info("schedule replaced", "job", r.name)
		}
	}
}
