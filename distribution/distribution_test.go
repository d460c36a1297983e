package distribution

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDistributor() *Distributor {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(WithLogger(logger), WithRand(rand.New(rand.NewSource(42))))
}

func targetRange(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i+1)
	}
	return out
}

func flatten(d Distribution) []string {
	var all []string
	for _, a := range d.Accounts() {
		all = append(all, d.TargetsFor(a)...)
	}
	return all
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input   string
		want    Strategy
		wantErr bool
	}{
		{"", RoundRobin, false},
		{"round_robin", RoundRobin, false},
		{"Sequential", Sequential, false},
		{" random ", Random, false},
		{"weighted", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDistribute_RoundRobin(t *testing.T) {
	d, err := newTestDistributor().Distribute([]string{"a", "b", "c", "d", "e"}, []string{"X", "Y"}, RoundRobin, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "e"}, d.TargetsFor("X"))
	assert.Equal(t, []string{"b", "d"}, d.TargetsFor("Y"))
}

func TestDistribute_SequentialBlockSizing(t *testing.T) {
	d, err := newTestDistributor().Distribute(targetRange(7), []string{"X", "Y", "Z"}, Sequential, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, d.TargetsFor("X"))
	assert.Equal(t, []string{"t4", "t5"}, d.TargetsFor("Y"))
	assert.Equal(t, []string{"t6", "t7"}, d.TargetsFor("Z"))
}

func TestDistribute_RandomBlockSizing(t *testing.T) {
	d, err := newTestDistributor().Distribute(targetRange(7), []string{"X", "Y", "Z"}, Random, 0)
	require.NoError(t, err)
	assert.Len(t, d.TargetsFor("X"), 3)
	assert.Len(t, d.TargetsFor("Y"), 2)
	assert.Len(t, d.TargetsFor("Z"), 2)
}

func TestDistribute_Coverage(t *testing.T) {
	accountSets := [][]string{{"A"}, {"A", "B"}, {"A", "B", "C"}, {"A", "B", "C", "D", "E", "F", "G"}}
	for _, strategy := range []Strategy{RoundRobin, Sequential, Random} {
		for _, accounts := range accountSets {
			for _, n := range []int{1, 2, 5, 10, 23} {
				name := fmt.Sprintf("%s/%d_accounts/%d_targets", strategy, len(accounts), n)
				t.Run(name, func(t *testing.T) {
					targets := targetRange(n)
					d, err := newTestDistributor().Distribute(targets, accounts, strategy, 0)
					require.NoError(t, err)

					got := flatten(d)
					sort.Strings(got)
					want := append([]string(nil), targets...)
					sort.Strings(want)
					assert.Equal(t, want, got)
					assert.Equal(t, n, d.TotalTargets())
				})
			}
		}
	}
}

func TestDistribute_Degenerate(t *testing.T) {
	t.Run("no accounts", func(t *testing.T) {
		d, err := newTestDistributor().Distribute([]string{"a"}, nil, RoundRobin, 1)
		require.NoError(t, err)
		assert.Empty(t, d.Accounts())
		assert.Empty(t, d.Map())
		assert.Empty(t, d.TargetsFor("anyone"))
	})

	t.Run("no targets", func(t *testing.T) {
		d, err := newTestDistributor().Distribute(nil, []string{"X", "Y"}, Sequential, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"X", "Y"}, d.Accounts())
		assert.Empty(t, d.TargetsFor("X"))
		assert.Empty(t, d.TargetsFor("Y"))
	})

	t.Run("duplicate accounts collapse", func(t *testing.T) {
		d, err := newTestDistributor().Distribute([]string{"a", "b"}, []string{"X", "X", "Y"}, RoundRobin, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"X", "Y"}, d.Accounts())
		assert.Equal(t, []string{"a"}, d.TargetsFor("X"))
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := newTestDistributor().Distribute([]string{"a"}, []string{"X"}, Strategy("weighted"), 0)
		assert.Error(t, err)
	})
}

func TestDistribute_Minimum(t *testing.T) {
	t.Run("already satisfied", func(t *testing.T) {
		d, err := newTestDistributor().Distribute([]string{"a", "b", "c"}, []string{"X", "Y", "Z"}, RoundRobin, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, d.TargetsFor("X"))
		assert.Equal(t, []string{"b"}, d.TargetsFor("Y"))
		assert.Equal(t, []string{"c"}, d.TargetsFor("Z"))
	})

	t.Run("shortfall leaves one account empty without duplicates", func(t *testing.T) {
		d, err := newTestDistributor().Distribute([]string{"a", "b"}, []string{"X", "Y", "Z"}, RoundRobin, 1)
		require.NoError(t, err)
		assert.Len(t, d.TargetsFor("X"), 1)
		assert.Len(t, d.TargetsFor("Y"), 1)
		assert.Empty(t, d.TargetsFor("Z"))

		all := flatten(d)
		sort.Strings(all)
		assert.Equal(t, []string{"a", "b"}, all)
	})
}

func TestEnforceMinimum(t *testing.T) {
	t.Run("pulls from the largest donor tail", func(t *testing.T) {
		in := FromMap(map[string][]string{
			"X": {"a", "b", "c", "d"},
			"Y": {"e", "f"},
			"Z": {},
		}, []string{"X", "Y", "Z"})

		out := EnforceMinimum(in, 2)
		assert.Equal(t, []string{"a", "b"}, out.TargetsFor("X"))
		assert.Equal(t, []string{"e", "f"}, out.TargetsFor("Y"))
		assert.Equal(t, []string{"d", "c"}, out.TargetsFor("Z"))
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := FromMap(map[string][]string{"X": {"a", "b", "c"}, "Y": {}}, []string{"X", "Y"})
		_ = EnforceMinimum(in, 1)
		assert.Equal(t, []string{"a", "b", "c"}, in.TargetsFor("X"))
		assert.Empty(t, in.TargetsFor("Y"))
	})

	t.Run("no donor with surplus", func(t *testing.T) {
		in := FromMap(map[string][]string{"X": {"a"}, "Y": {"b"}, "Z": {}}, []string{"X", "Y", "Z"})
		out := EnforceMinimum(in, 1)
		assert.Equal(t, in.Map(), out.Map())
	})

	t.Run("zero minimum is a copy", func(t *testing.T) {
		in := FromMap(map[string][]string{"X": {"a", "b"}, "Y": {}}, []string{"X", "Y"})
		out := EnforceMinimum(in, 0)
		assert.Equal(t, in.Map(), out.Map())
	})

	t.Run("every needer reaches the minimum when possible", func(t *testing.T) {
		in := FromMap(map[string][]string{
			"A": targetRange(9),
			"B": {},
			"C": {},
			"D": {"z"},
		}, []string{"A", "B", "C", "D"})
		out := EnforceMinimum(in, 2)
		for _, a := range out.Accounts() {
			assert.GreaterOrEqual(t, len(out.TargetsFor(a)), 2, a)
		}
		assert.Equal(t, 10, out.TotalTargets())
	})
}

func TestDistribution_Stats(t *testing.T) {
	d, err := newTestDistributor().Distribute(targetRange(7), []string{"X", "Y", "Z"}, Sequential, 0)
	require.NoError(t, err)

	stats := d.Stats()
	assert.Equal(t, 3, stats.TotalAccounts)
	assert.Equal(t, 7, stats.TotalTargets)
	assert.Equal(t, 2, stats.MinTargetsPerAccount)
	assert.Equal(t, 3, stats.MaxTargetsPerAccount)
	assert.InDelta(t, 7.0/3.0, stats.AvgTargetsPerAccount, 0.0001)
	assert.Equal(t, map[string]int{"X": 3, "Y": 2, "Z": 2}, stats.PerAccount)

	empty := Distribution{}.Stats()
	assert.Zero(t, empty.TotalAccounts)
	assert.Zero(t, empty.AvgTargetsPerAccount)
}

func TestDistribution_TargetsForReturnsCopy(t *testing.T) {
	d, err := newTestDistributor().Distribute([]string{"a", "b"}, []string{"X"}, RoundRobin, 0)
	require.NoError(t, err)

	got := d.TargetsFor("X")
	got[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, d.TargetsFor("X"))
}
