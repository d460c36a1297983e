package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/messages"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/store"
)

func TestTargetRunner_StorySuccessSkipsDirectMessage(t *testing.T) {
	exec := newFakeExecutor()
	exec.stories["alice"] = actions.StoryResult{Found: true, Liked: true}
	r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

	res := r.Run(context.Background(), "alice", []string{"hi"}, allFlags)

	assert.Equal(t, 0, exec.count("dm"))
	_, attempted := res.Outcome(actions.DirectMessage)
	assert.False(t, attempted)
	assert.True(t, res.Succeeded())
}

func TestTargetRunner_StoryFailureFallsBackToDirectMessage(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *fakeExecutor)
	}{
		{name: "no story", setup: func(e *fakeExecutor) {}},
		{name: "story found but nothing worked", setup: func(e *fakeExecutor) {
			e.stories["alice"] = actions.StoryResult{Found: true}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			tt.setup(exec)
			exec.dmOK["alice"] = true
			r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

			res := r.Run(context.Background(), "alice", []string{"hello there"}, allFlags)

			assert.Equal(t, 1, exec.count("dm"))
			dm, ok := res.Outcome(actions.DirectMessage)
			require.True(t, ok)
			assert.True(t, dm.Success)
			assert.Contains(t, exec.messages, "hello there")
		})
	}
}

func TestTargetRunner_DirectMessageDisabled(t *testing.T) {
	exec := newFakeExecutor()
	flags := allFlags
	flags.SendDirectMessage = false
	r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

	res := r.Run(context.Background(), "alice", nil, flags)

	assert.Equal(t, 0, exec.count("dm"))
	assert.Len(t, res.Outcomes, 2)
	assert.Equal(t, Failed, res.Status)
}

func TestTargetRunner_DelaySequence(t *testing.T) {
	exec := newFakeExecutor()
	fc := clock.NewFake(testStart)
	r := NewTargetRunner("bot", exec, testOptions(fc)...)

	res := r.Run(context.Background(), "alice", nil, allFlags)

	assert.Equal(t, []time.Duration{20 * time.Second, 5 * time.Second, 12 * time.Second}, fc.Sleeps(),
		"between stages after likes, settle after story, pause before the fallback message")
	assert.Equal(t, testStart, res.StartedAt)
	assert.Equal(t, testStart.Add(37*time.Second), res.EndedAt)
}

func TestTargetRunner_BetweenStagesDelayFollowsFailedLikes(t *testing.T) {
	exec := newFakeExecutor()
	exec.errs["alice"] = true
	fc := clock.NewFake(testStart)
	r := NewTargetRunner("bot", exec, testOptions(fc)...)

	r.Run(context.Background(), "alice", nil, actions.Flags{LikePosts: true, PostsCount: 2})

	assert.Equal(t, []time.Duration{20 * time.Second}, fc.Sleeps())
}

func TestTargetRunner_Status(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *fakeExecutor)
		want  TargetStatus
	}{
		{
			name: "all attempted stages succeed",
			setup: func(e *fakeExecutor) {
				e.liked["alice"] = 2
				e.stories["alice"] = actions.StoryResult{Found: true, Replied: true}
			},
			want: Completed,
		},
		{
			name: "likes fail and story succeeds",
			setup: func(e *fakeExecutor) {
				e.stories["alice"] = actions.StoryResult{Found: true, Liked: true}
			},
			want: PartiallyCompleted,
		},
		{
			name: "only the fallback message succeeds",
			setup: func(e *fakeExecutor) {
				e.dmOK["alice"] = true
			},
			want: PartiallyCompleted,
		},
		{
			name:  "nothing succeeds",
			setup: func(e *fakeExecutor) {},
			want:  Failed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			tt.setup(exec)
			r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

			res := r.Run(context.Background(), "alice", nil, allFlags)
			assert.Equal(t, tt.want, res.Status)
		})
	}
}

func TestTargetRunner_LikeOutcome(t *testing.T) {
	exec := newFakeExecutor()
	exec.liked["alice"] = 5
	r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

	res := r.Run(context.Background(), "alice", nil, actions.Flags{LikePosts: true, PostsCount: 2})

	o, ok := res.Outcome(actions.LikePosts)
	require.True(t, ok)
	assert.True(t, o.Success)
	assert.Equal(t, "liked 2/2 posts", o.Detail)
	assert.Equal(t, "alice", o.Target)
}

func TestTargetRunner_StageErrorsDoNotStopLaterStages(t *testing.T) {
	for _, mode := range []string{"error", "panic"} {
		t.Run(mode, func(t *testing.T) {
			exec := newFakeExecutor()
			if mode == "panic" {
				exec.panics["alice"] = true
			} else {
				exec.errs["alice"] = true
			}
			r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

			var res UserRunResult
			require.NotPanics(t, func() {
				res = r.Run(context.Background(), "alice", nil, allFlags)
			})

			assert.Equal(t, 1, exec.count("like"))
			assert.Equal(t, 1, exec.count("story"))
			assert.Equal(t, 1, exec.count("dm"))
			require.Len(t, res.Outcomes, 3)
			for _, o := range res.Outcomes {
				assert.False(t, o.Success)
				assert.NotEmpty(t, o.Detail)
			}
			assert.Equal(t, Failed, res.Status)
		})
	}
}

func TestTargetRunner_ReplyUsesMessagePool(t *testing.T) {
	t.Run("picks from pool", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.stories["alice"] = actions.StoryResult{Found: true, Replied: true}
		r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

		r.Run(context.Background(), "alice", []string{"only one"}, actions.Flags{ReplyStories: true})
		assert.Equal(t, []string{"only one"}, exec.messages)
	})

	t.Run("empty pool falls back", func(t *testing.T) {
		exec := newFakeExecutor()
		r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart))...)

		r.Run(context.Background(), "alice", nil, actions.Flags{ReplyStories: true})
		assert.Equal(t, []string{messages.Fallback}, exec.messages)
	})
}

func TestTargetRunner_GuardBlocksStage(t *testing.T) {
	exec := newFakeExecutor()
	exec.liked["alice"] = 2
	guard := stubGuard{blocked: map[actions.Category]bool{actions.LikePosts: true}}
	r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart), WithGuard(guard))...)

	res := r.Run(context.Background(), "alice", nil, actions.Flags{LikePosts: true, PostsCount: 2})

	assert.Equal(t, 0, exec.count("like"))
	o, ok := res.Outcome(actions.LikePosts)
	require.True(t, ok)
	assert.False(t, o.Success)
	assert.Equal(t, limitReached, o.Detail)
}

func TestTargetRunner_GuardErrorFailsOpen(t *testing.T) {
	exec := newFakeExecutor()
	exec.liked["alice"] = 1
	guard := stubGuard{err: assert.AnError}
	r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart), WithGuard(guard))...)

	res := r.Run(context.Background(), "alice", nil, actions.Flags{LikePosts: true, PostsCount: 2})

	assert.Equal(t, 1, exec.count("like"))
	assert.True(t, res.Succeeded())
}

func TestTargetRunner_RecordsOutcomes(t *testing.T) {
	exec := newFakeExecutor()
	exec.liked["alice"] = 1
	st := store.NewMemoryStore()
	r := NewTargetRunner("bot", exec, testOptions(clock.NewFake(testStart), WithRecorder(st))...)

	r.Run(context.Background(), "alice", nil, allFlags)

	outcomes := st.Outcomes("bot")
	require.Len(t, outcomes, 3)
	assert.Equal(t, actions.LikePosts, outcomes[0].Category)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, actions.StoryInteraction, outcomes[1].Category)
	assert.Equal(t, actions.DirectMessage, outcomes[2].Category)
	assert.Equal(t, testStart, outcomes[0].At)
}

func TestTargetRunner_IgnoresCancellation(t *testing.T) {
	exec := newFakeExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fc := clock.NewFake(testStart)
	r := NewTargetRunner("bot", exec, testOptions(fc)...)

	res := r.Run(ctx, "alice", nil, allFlags)

	assert.Len(t, res.Outcomes, 3, "a started target runs to completion")
	assert.Len(t, fc.Sleeps(), 3)
}
