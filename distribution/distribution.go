// Package distribution partitions target usernames across operating accounts.
//
// A Distribution is computed once per session and then shared read-only by
// every account worker:
//
//	d, err := distribution.New(distribution.WithLogger(logger)).
//	    Distribute(targets, accounts, distribution.RoundRobin, 1)
//	if err != nil {
//	    return err
//	}
//	for _, account := range d.Accounts() {
//	    go work(account, d.TargetsFor(account))
//	}
package distribution

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// Strategy selects how targets are partitioned.
type Strategy string

const (
	// RoundRobin assigns target i to account i mod len(accounts).
	RoundRobin Strategy = "round_robin"
	// Sequential splits targets into contiguous blocks in account order.
	Sequential Strategy = "sequential"
	// Random shuffles targets once and then splits them like Sequential.
	Random Strategy = "random"
)

// ParseStrategy converts a config value to a Strategy. An empty string selects RoundRobin.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundRobin:
		return RoundRobin, nil
	case Sequential:
		return Sequential, nil
	case Random:
		return Random, nil
	default:
		return "", fmt.Errorf("unknown distribution strategy %q (valid: %s, %s, %s)", s, RoundRobin, Sequential, Random)
	}
}

// Distribution maps each account to the ordered targets assigned to it.
// Accounts keep the order they were supplied in. A Distribution is never
// mutated after it is built; accessors return copies.
type Distribution struct {
	accounts    []string
	assignments map[string][]string
}

// Accounts returns the accounts in their original order.
func (d Distribution) Accounts() []string {
	out := make([]string, len(d.accounts))
	copy(out, d.accounts)
	return out
}

// TargetsFor returns the targets assigned to account, or an empty list for unknown accounts.
func (d Distribution) TargetsFor(account string) []string {
	targets := d.assignments[account]
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// Map returns a copy of the account to targets mapping.
func (d Distribution) Map() map[string][]string {
	out := make(map[string][]string, len(d.assignments))
	for _, a := range d.accounts {
		out[a] = d.TargetsFor(a)
	}
	return out
}

// TotalTargets returns the number of assigned targets across all accounts.
func (d Distribution) TotalTargets() int {
	n := 0
	for _, t := range d.assignments {
		n += len(t)
	}
	return n
}

// FromMap builds a Distribution from a mapping, ordering accounts by the given
// order first and appending any remaining accounts from m in sorted order.
func FromMap(m map[string][]string, order []string) Distribution {
	d := Distribution{assignments: make(map[string][]string, len(m))}
	seen := make(map[string]bool, len(m))
	for _, a := range order {
		if seen[a] {
			continue
		}
		seen[a] = true
		d.accounts = append(d.accounts, a)
	}
	rest := make([]string, 0, len(m))
	for a := range m {
		if !seen[a] {
			rest = append(rest, a)
		}
	}
	sortStrings(rest)
	d.accounts = append(d.accounts, rest...)
	for _, a := range d.accounts {
		d.assignments[a] = append([]string(nil), m[a]...)
	}
	return d
}

// Distributor computes distributions.
type Distributor struct {
	logger *slog.Logger
	rnd    *rand.Rand
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithLogger sets the logger used to report distribution results.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Distributor) {
		d.logger = logger
	}
}

// WithRand sets the random source used by the Random strategy.
func WithRand(rnd *rand.Rand) Option {
	return func(d *Distributor) {
		d.rnd = rnd
	}
}

// New creates a Distributor.
func New(opts ...Option) *Distributor {
	d := &Distributor{
		logger: slog.Default(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distribute partitions targets across accounts with the given strategy and,
// when minPerAccount > 0, runs the minimum-enforcement pass. Zero accounts
// yields an empty Distribution; zero targets gives every account an empty list.
// Duplicate account ids are collapsed.
func (d *Distributor) Distribute(targets, accounts []string, strategy Strategy, minPerAccount int) (Distribution, error) {
	if strategy == "" {
		strategy = RoundRobin
	}

	accounts = uniq(accounts)
	if len(accounts) == 0 {
		d.logger.Warn("no accounts to distribute targets to", "targets", len(targets))
		return Distribution{assignments: map[string][]string{}}, nil
	}

	result := Distribution{
		accounts:    accounts,
		assignments: make(map[string][]string, len(accounts)),
	}
	for _, a := range accounts {
		result.assignments[a] = []string{}
	}
	if len(targets) == 0 {
		d.logger.Warn("no targets to distribute", "accounts", len(accounts))
		return result, nil
	}

	switch strategy {
	case RoundRobin:
		for i, t := range targets {
			a := accounts[i%len(accounts)]
			result.assignments[a] = append(result.assignments[a], t)
		}
	case Sequential:
		splitBlocks(result, targets)
	case Random:
		shuffled := make([]string, len(targets))
		copy(shuffled, targets)
		d.rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		splitBlocks(result, shuffled)
	default:
		return Distribution{}, fmt.Errorf("unknown distribution strategy %q", strategy)
	}

	if minPerAccount > 0 {
		result = EnforceMinimum(result, minPerAccount)
	}

	d.logResult(result, strategy)
	return result, nil
}

// splitBlocks assigns contiguous blocks; the first len(targets) mod len(accounts)
// accounts receive one extra target.
func splitBlocks(d Distribution, targets []string) {
	per := len(targets) / len(d.accounts)
	remainder := len(targets) % len(d.accounts)
	start := 0
	for i, a := range d.accounts {
		end := start + per
		if i < remainder {
			end++
		}
		d.assignments[a] = append([]string{}, targets[start:end]...)
		start = end
	}
}

func (d *Distributor) logResult(result Distribution, strategy Strategy) {
	stats := result.Stats()
	d.logger.Info("targets distributed",
		"strategy", string(strategy),
		"accounts", stats.TotalAccounts,
		"targets", stats.TotalTargets,
		"min_per_account", stats.MinTargetsPerAccount,
		"max_per_account", stats.MaxTargetsPerAccount,
	)
	for _, a := range result.accounts {
		targets := result.assignments[a]
		preview := targets
		if len(preview) > 3 {
			preview = preview[:3]
		}
		d.logger.Debug("account assignment", "account", a, "count", len(targets), "preview", strings.Join(preview, ", "))
	}
}

func uniq(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
