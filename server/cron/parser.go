package cron

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/config"
)

const (
	triggerSeparator     = ";"
	accountSeparator     = ":"
	accountListSeparator = ","
	// allAccounts selects every enabled account.
	allAccounts = "*"
)

// TriggerSpec is a validated schedule and the accounts it starts. No accounts
// means every enabled account.
type TriggerSpec struct {
	Accounts []string
	CronSpec string
}

// FromConfig validates the configured triggers against the known accounts.
func FromConfig(triggers []config.CronTrigger, knownAccounts map[string]bool) ([]TriggerSpec, error) {
	specs := make([]TriggerSpec, 0, len(triggers))
	for i, t := range triggers {
		spec, err := newTriggerSpec(t.Accounts, strings.TrimSpace(t.Schedule), knownAccounts)
		if err != nil {
			return nil, fmt.Errorf("cron trigger %d: %w", i+1, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ParseTriggerSpecs parses a multi-trigger specification string.
// The format is: account1,account2:cron_expression;*:cron_expression2
// where * selects every enabled account.
//
// Example:
//
//	"bot_one,bot_two:0 9 * * *;*:0 18 * * 1-5"
func ParseTriggerSpecs(spec string, knownAccounts map[string]bool) ([]TriggerSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("cron spec cannot be empty")
	}

	triggerStrs := strings.Split(spec, triggerSeparator)
	specs := make([]TriggerSpec, 0, len(triggerStrs))

	for _, triggerStr := range triggerStrs {
		triggerStr = strings.TrimSpace(triggerStr)
		if triggerStr == "" {
			continue // trailing semicolon
		}

		parts := strings.Split(triggerStr, accountSeparator)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid trigger spec: expected format 'accounts:cron', got '%s'", triggerStr)
		}

		accountsStr := strings.TrimSpace(parts[0])
		if accountsStr == "" {
			return nil, fmt.Errorf("invalid trigger spec: missing accounts in '%s'", triggerStr)
		}

		var accounts []string
		if accountsStr != allAccounts {
			for _, a := range strings.Split(accountsStr, accountListSeparator) {
				if a = strings.TrimSpace(a); a != "" {
					accounts = append(accounts, a)
				}
			}
			if len(accounts) == 0 {
				return nil, fmt.Errorf("invalid trigger spec: no valid accounts in '%s'", triggerStr)
			}
		}

		ts, err := newTriggerSpec(accounts, strings.TrimSpace(parts[1]), knownAccounts)
		if err != nil {
			return nil, fmt.Errorf("invalid trigger spec '%s': %w", triggerStr, err)
		}
		specs = append(specs, ts)
	}

	if len(specs) == 0 {
		return nil, errors.New("no valid triggers found in cron spec")
	}

	return specs, nil
}

func newTriggerSpec(accounts []string, cronSpec string, knownAccounts map[string]bool) (TriggerSpec, error) {
	if cronSpec == "" {
		return TriggerSpec{}, errors.New("missing cron schedule")
	}
	if _, err := specParser.Parse(cronSpec); err != nil {
		return TriggerSpec{}, errors.Join(ErrInvalidCronSpec, err)
	}

	seen := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if seen[a] {
			return TriggerSpec{}, fmt.Errorf("duplicate account '%s'", a)
		}
		seen[a] = true
		if !knownAccounts[a] {
			return TriggerSpec{}, fmt.Errorf("unknown account '%s' (available: %s)", a, formatAccounts(knownAccounts))
		}
	}

	return TriggerSpec{Accounts: accounts, CronSpec: cronSpec}, nil
}

func formatAccounts(known map[string]bool) string {
	accounts := make([]string, 0, len(known))
	for a := range known {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return strings.Join(accounts, ", ")
}
