package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
)

// Automation holds the collectors updated by the runners. A nil *Automation
// is valid and records nothing.
type Automation struct {
	actions        CounterVec
	targets        CounterVec
	accountRuns    CounterVec
	successRate    GaugeVec
	activeAccounts Gauge
	lastRun        Gauge
}

// NewAutomation creates and registers the automation collectors on reg.
func NewAutomation(reg Registry) (*Automation, error) {
	a := &Automation{}
	var err error

	if a.actions, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "actions_total",
		Help: "Per-target actions by category and result",
	}, []string{"category", "result"}); err != nil {
		return nil, err
	}
	if a.targets, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "targets_total",
		Help: "Processed targets by final status",
	}, []string{"status"}); err != nil {
		return nil, err
	}
	if a.accountRuns, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "account_runs_total",
		Help: "Account runs by result",
	}, []string{"result"}); err != nil {
		return nil, err
	}
	if a.successRate, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "account_success_rate_percent",
		Help: "Success rate of the last run of each account",
	}, []string{"account"}); err != nil {
		return nil, err
	}
	if a.activeAccounts, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "active_accounts",
		Help: "Accounts currently processing targets",
	}); err != nil {
		return nil, err
	}
	if a.lastRun, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "last_session_timestamp_seconds",
		Help: "Unix time the last session finished",
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveAction counts one stage outcome.
func (a *Automation) ObserveAction(o actions.Outcome) {
	if a == nil {
		return
	}
	a.actions.With(prometheus.Labels{"category": o.Category.String(), "result": result(o.Success)}).Inc()
}

// ObserveTarget counts a finished target by status.
func (a *Automation) ObserveTarget(status string) {
	if a == nil {
		return
	}
	a.targets.With(prometheus.Labels{"status": status}).Inc()
}

// ObserveAccountRun records the end of one account's run.
func (a *Automation) ObserveAccountRun(account string, success bool, successRate float64) {
	if a == nil {
		return
	}
	a.accountRuns.With(prometheus.Labels{"result": result(success)}).Inc()
	a.successRate.With(prometheus.Labels{"account": account}).Set(successRate)
}

// SetActiveAccounts sets the number of running account workers.
func (a *Automation) SetActiveAccounts(n int) {
	if a == nil {
		return
	}
	a.activeAccounts.Set(float64(n))
}

// SessionFinished stamps the completion time of a session.
func (a *Automation) SessionFinished(at time.Time) {
	if a == nil {
		return
	}
	a.lastRun.Set(float64(at.Unix()))
}
