// Package cron starts sessions on cron schedules.
//
// Every schedule becomes a CronTrigger that calls its callback when the
// schedule fires. CronTriggerManager builds the triggers from the config file
// or a -cron flag and starts and reports on them as one unit.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec wraps schedule expressions the parser rejects.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronTrigger calls run each time its schedule fires.
type CronTrigger struct {
	spec     string
	schedule cron.Schedule
	run      func() error
	logger   *slog.Logger
}

// NewCronTrigger parses a five-field expression: minute, hour, day of month,
// month and day of week. Parse failures wrap ErrInvalidCronSpec.
func NewCronTrigger(spec string, run func() error, logger *slog.Logger) (*CronTrigger, error) {
	schedule, err := specParser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &CronTrigger{
		spec:     spec,
		schedule: schedule,
		run:      run,
		logger:   logger,
	}, nil
}

// Start runs the schedule in the background until ctx is done.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

// NextRun reports when the schedule fires next.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(time.Now())
}

func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		next := ct.schedule.Next(time.Now())
		wait := time.Until(next)
		ct.logger.Debug("next scheduled session", "schedule", ct.spec, "at", next, "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			ct.logger.Info("schedule stopped", "schedule", ct.spec)
			return
		case <-timer.C:
			ct.fire()
		}
	}
}

func (ct *CronTrigger) fire() {
	ct.logger.Info("schedule fired", "schedule", ct.spec)
	if err := ct.run(); err != nil {
		ct.logger.Warn("scheduled session not started", "schedule", ct.spec, "error", err)
	}
}
