package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/workflows/automation"
)

// Runnable is implemented by anything that can start a session.
type Runnable interface {
	Run(req automation.Request) error
}

// CronTriggerManager owns one CronTrigger per schedule.
type CronTriggerManager struct {
	triggers []*CronTrigger
	specs    []TriggerSpec
	logger   *slog.Logger
}

// NewCronTriggerManager creates a trigger for every spec. Each fires a session
// over the spec's accounts and the configured targets file.
func NewCronTriggerManager(specs []TriggerSpec, runnable Runnable, logger *slog.Logger) (*CronTriggerManager, error) {
	triggers := make([]*CronTrigger, 0, len(specs))
	for _, spec := range specs {
		req := automation.Request{Accounts: spec.Accounts}
		trigger, err := NewCronTrigger(spec.CronSpec, func() error {
			return runnable.Run(req)
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating trigger for '%s:%s': %w", formatAccountList(spec.Accounts), spec.CronSpec, err)
		}
		triggers = append(triggers, trigger)
	}

	for i, trigger := range triggers {
		logger.Info("trigger registered",
			"index", i,
			"accounts", formatAccountList(specs[i].Accounts),
			"schedule", specs[i].CronSpec,
			"next_run", trigger.NextRun(),
		)
	}

	return &CronTriggerManager{
		triggers: triggers,
		specs:    specs,
		logger:   logger,
	}, nil
}

// Start runs every schedule in the background until ctx is done.
func (m *CronTriggerManager) Start(ctx context.Context) {
	for _, trigger := range m.triggers {
		trigger.Start(ctx)
	}
}

// Specs returns the schedules the manager was built from.
func (m *CronTriggerManager) Specs() []TriggerSpec {
	return m.specs
}

// NextRun reports the earliest upcoming session over all schedules, or the
// zero time without schedules.
func (m *CronTriggerManager) NextRun() time.Time {
	if len(m.triggers) == 0 {
		return time.Time{}
	}

	earliest := m.triggers[0].NextRun()
	for _, t := range m.triggers[1:] {
		if next := t.NextRun(); next.Before(earliest) {
			earliest = next
		}
	}

	return earliest
}

func formatAccountList(accounts []string) string {
	if len(accounts) == 0 {
		return allAccounts
	}
	return strings.Join(accounts, ",")
}
