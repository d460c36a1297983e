package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"
)

// storeFactories lets every behavioural test run against both implementations.
func storeFactories() map[string]func(t *testing.T) StatsStore {
	return map[string]func(t *testing.T) StatsStore{
		"memory": func(t *testing.T) StatsStore {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) StatsStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "bot.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s StatsStore)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func testDistribution() distribution.Distribution {
	return distribution.FromMap(map[string][]string{
		"acc1": {"t1", "t3"},
		"acc2": {"t2"},
	}, []string{"acc1", "acc2"})
}

func TestStore_DistributionResume(t *testing.T) {
	forEachStore(t, func(t *testing.T, s StatsStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveDistribution(ctx, "sess-1", testDistribution()))

		targets, err := s.GetTargetsForAccount(ctx, "acc1", "sess-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t3"}, targets)

		require.NoError(t, s.MarkTargetProcessed(ctx, "sess-1", "acc1", "t1", true))

		targets, err = s.GetTargetsForAccount(ctx, "acc1", "sess-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"t3"}, targets)

		// Other accounts and sessions are untouched.
		targets, err = s.GetTargetsForAccount(ctx, "acc2", "sess-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"t2"}, targets)

		targets, err = s.GetTargetsForAccount(ctx, "acc1", "other")
		require.NoError(t, err)
		assert.Empty(t, targets)
	})
}

func TestStore_HasDistribution(t *testing.T) {
	forEachStore(t, func(t *testing.T, s StatsStore) {
		ctx := context.Background()
		ok, err := s.HasDistribution(ctx, "sess-1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SaveDistribution(ctx, "sess-1", testDistribution()))
		require.NoError(t, s.MarkTargetProcessed(ctx, "sess-1", "acc2", "t2", true))

		ok, err = s.HasDistribution(ctx, "sess-1")
		require.NoError(t, err)
		assert.True(t, ok, "processed rows still belong to the session")

		ok, err = s.HasDistribution(ctx, "sess-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_SaveDistributionReplaces(t *testing.T) {
	forEachStore(t, func(t *testing.T, s StatsStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveDistribution(ctx, "sess", testDistribution()))
		replacement := distribution.FromMap(map[string][]string{"acc1": {"x"}}, []string{"acc1"})
		require.NoError(t, s.SaveDistribution(ctx, "sess", replacement))

		targets, err := s.GetTargetsForAccount(ctx, "acc1", "sess")
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, targets)

		targets, err = s.GetTargetsForAccount(ctx, "acc2", "sess")
		require.NoError(t, err)
		assert.Empty(t, targets)
	})
}

func TestStore_ActionCounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s StatsStore) {
		ctx := context.Background()
		now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.Local)

		record := func(account string, c actions.Category, success bool, at time.Time) {
			require.NoError(t, s.RecordOutcome(ctx, account, actions.Outcome{
				Category: c, Target: "t", Success: success, At: at,
			}))
		}
		record("acc", actions.LikePosts, true, now.Add(-10*time.Minute))
		record("acc", actions.LikePosts, true, now.Add(-2*time.Hour))
		record("acc", actions.StoryInteraction, true, now.Add(-30*time.Minute))
		record("acc", actions.DirectMessage, false, now.Add(-5*time.Minute))
		record("acc", actions.DirectMessage, true, now.Add(-20*time.Hour)) // yesterday
		record("other", actions.LikePosts, true, now.Add(-time.Minute))

		n, err := s.CountActionsWithin(ctx, "acc", now.Add(-time.Hour), now)
		require.NoError(t, err)
		assert.Equal(t, 2, n, "failed actions and other accounts are not counted")

		today, err := s.TodayActions(ctx, "acc", now)
		require.NoError(t, err)
		assert.Equal(t, map[actions.Category]int{
			actions.LikePosts:        2,
			actions.StoryInteraction: 1,
		}, today)
	})
}

func TestStore_Sessions(t *testing.T) {
	forEachStore(t, func(t *testing.T, s StatsStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveAccount(ctx, Account{Username: "acc1"}))

		start := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
		rec := SessionRecord{
			SessionID:    "sess",
			Account:      "acc1",
			StartedAt:    start,
			EndedAt:      start.Add(time.Hour),
			TotalTargets: 4,
			Succeeded:    3,
			Failed:       1,
			SuccessRate:  75,
		}
		require.NoError(t, s.SaveSession(ctx, rec))
		require.NoError(t, s.SaveSession(ctx, SessionRecord{SessionID: "other", Account: "acc1", StartedAt: start, EndedAt: start}))

		got, err := s.Sessions(ctx, "sess")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "acc1", got[0].Account)
		assert.Equal(t, 3, got[0].Succeeded)
		assert.InDelta(t, 75.0, got[0].SuccessRate, 0.001)
		assert.True(t, got[0].StartedAt.Equal(start))
		assert.True(t, got[0].EndedAt.Equal(start.Add(time.Hour)))
	})
}

func TestStore_CleanupOldData(t *testing.T) {
	forEachStore(t, func(t *testing.T, s StatsStore) {
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, s.RecordOutcome(ctx, "acc", actions.Outcome{Category: actions.LikePosts, Success: true, At: now.Add(-40 * 24 * time.Hour)}))
		require.NoError(t, s.RecordOutcome(ctx, "acc", actions.Outcome{Category: actions.LikePosts, Success: true, At: now}))

		removed, err := s.CleanupOldData(ctx, now.Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		n, err := s.CountActionsWithin(ctx, "acc", now.Add(-365*24*time.Hour), now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStore_CleanupKeepsPendingAssignments(t *testing.T) {
	forEachStore(t, func(t *testing.T, s StatsStore) {
		ctx := context.Background()
		require.NoError(t, s.SaveDistribution(ctx, "sess", testDistribution()))
		require.NoError(t, s.MarkTargetProcessed(ctx, "sess", "acc1", "t1", false))

		removed, err := s.CleanupOldData(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		targets, err := s.GetTargetsForAccount(ctx, "acc1", "sess")
		require.NoError(t, err)
		assert.Equal(t, []string{"t3"}, targets)
	})
}

func TestMemoryStore_Outcomes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.RecordOutcome(ctx, "acc", actions.Outcome{Category: actions.LikePosts, Target: "a"}))
	require.NoError(t, s.RecordOutcome(ctx, "other", actions.Outcome{Category: actions.LikePosts, Target: "b"}))
	require.NoError(t, s.RecordOutcome(ctx, "acc", actions.Outcome{Category: actions.DirectMessage, Target: "c"}))

	got := s.Outcomes("acc")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Target)
	assert.Equal(t, "c", got[1].Target)
	assert.False(t, got[0].At.IsZero(), "missing timestamps are filled in")
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveAccount(context.Background(), Account{Username: "a", Proxy: "1.2.3.4:80"}))
	require.NoError(t, s.SaveAccount(context.Background(), Account{Username: "a", Proxy: "5.6.7.8:80"}))
}
