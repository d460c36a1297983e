package distribution

import "sort"

// Stats summarizes how evenly targets were spread.
type Stats struct {
	TotalAccounts        int            `json:"total_accounts"`
	TotalTargets         int            `json:"total_targets"`
	MinTargetsPerAccount int            `json:"min_targets_per_account"`
	MaxTargetsPerAccount int            `json:"max_targets_per_account"`
	AvgTargetsPerAccount float64        `json:"avg_targets_per_account"`
	PerAccount           map[string]int `json:"distribution"`
}

// Stats computes the distribution summary. An empty distribution yields zero values.
func (d Distribution) Stats() Stats {
	s := Stats{PerAccount: make(map[string]int, len(d.accounts))}
	if len(d.accounts) == 0 {
		return s
	}
	s.TotalAccounts = len(d.accounts)
	s.MinTargetsPerAccount = len(d.assignments[d.accounts[0]])
	for _, a := range d.accounts {
		n := len(d.assignments[a])
		s.PerAccount[a] = n
		s.TotalTargets += n
		if n < s.MinTargetsPerAccount {
			s.MinTargetsPerAccount = n
		}
		if n > s.MaxTargetsPerAccount {
			s.MaxTargetsPerAccount = n
		}
	}
	s.AvgTargetsPerAccount = float64(s.TotalTargets) / float64(s.TotalAccounts)
	return s
}

func sortStrings(s []string) {
	sort.Strings(s)
}
