package distribution

// EnforceMinimum returns a copy of d in which accounts holding fewer than minimum
// targets have pulled targets from the account with the most surplus. Targets
// are taken from the end of the donor's list and appended to the needer's.
// Donors never drop to or below minimum; when no donor has surplus left the
// remaining needers keep what they have. d itself is not modified.
func EnforceMinimum(d Distribution, minimum int) Distribution {
	out := Distribution{
		accounts:    append([]string(nil), d.accounts...),
		assignments: make(map[string][]string, len(d.assignments)),
	}
	for _, a := range d.accounts {
		out.assignments[a] = append([]string{}, d.assignments[a]...)
	}
	if minimum <= 0 {
		return out
	}

	var needers, donors []string
	for _, a := range out.accounts {
		switch n := len(out.assignments[a]); {
		case n < minimum:
			needers = append(needers, a)
		case n > minimum:
			donors = append(donors, a)
		}
	}

	for _, needer := range needers {
		for len(out.assignments[needer]) < minimum && len(donors) > 0 {
			idx := largest(out, donors)
			donor := donors[idx]
			list := out.assignments[donor]
			if len(list) <= minimum {
				break
			}
			moved := list[len(list)-1]
			out.assignments[donor] = list[:len(list)-1]
			out.assignments[needer] = append(out.assignments[needer], moved)
			if len(out.assignments[donor]) <= minimum {
				donors = append(donors[:idx], donors[idx+1:]...)
			}
		}
	}
	return out
}

// largest returns the index of the donor holding the most targets; ties go to the earliest.
func largest(d Distribution, donors []string) int {
	best := 0
	for i := 1; i < len(donors); i++ {
		if len(d.assignments[donors[i]]) > len(d.assignments[donors[best]]) {
			best = i
		}
	}
	return best
}
