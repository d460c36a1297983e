package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
)

// fakeExecutor scripts executor results per target and counts calls.
type fakeExecutor struct {
	mu sync.Mutex

	loginErr error
	// liked maps target -> posts liked; missing targets like nothing.
	liked map[string]int
	// stories maps target -> story result; missing targets have no story.
	stories map[string]actions.StoryResult
	// dmOK lists targets whose direct message succeeds.
	dmOK map[string]bool
	// panics lists targets for which every call panics.
	panics map[string]bool
	// errs lists targets for which every call errors.
	errs map[string]bool

	calls    map[string]int // method -> count
	messages []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		liked:   map[string]int{},
		stories: map[string]actions.StoryResult{},
		dmOK:    map[string]bool{},
		panics:  map[string]bool{},
		errs:    map[string]bool{},
		calls:   map[string]int{},
	}
}

func (e *fakeExecutor) record(method, target string) error {
	e.mu.Lock()
	e.calls[method]++
	p, failing := e.panics[target], e.errs[target]
	e.mu.Unlock()
	if p {
		panic("element not interactable: " + target)
	}
	if failing {
		return errors.New("timeout waiting for " + target)
	}
	return nil
}

func (e *fakeExecutor) count(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

func (e *fakeExecutor) Login(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["login"]++
	return e.loginErr
}

func (e *fakeExecutor) LikePosts(_ context.Context, target string, count int) (int, error) {
	if err := e.record("like", target); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return min(e.liked[target], count), nil
}

func (e *fakeExecutor) InteractWithStory(_ context.Context, target string, req actions.StoryRequest) (actions.StoryResult, error) {
	if err := e.record("story", target); err != nil {
		return actions.StoryResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if req.Reply != "" {
		e.messages = append(e.messages, req.Reply)
	}
	return e.stories[target], nil
}

func (e *fakeExecutor) SendDirectMessage(_ context.Context, target, message string) (bool, error) {
	if err := e.record("dm", target); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, message)
	return e.dmOK[target], nil
}

func (e *fakeExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["close"]++
	return nil
}

var (
	testStart  = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	testDelays = Delays{
		BetweenTargets:      clock.Fixed(45 * time.Second),
		BetweenStages:       clock.Fixed(20 * time.Second),
		StorySettle:         5 * time.Second,
		BeforeDirectMessage: clock.Fixed(12 * time.Second),
	}
	allFlags = actions.Flags{
		LikePosts:         true,
		LikeStories:       true,
		ReplyStories:      true,
		SendDirectMessage: true,
		PostsCount:        2,
	}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions(c clock.Clock, extra ...Option) []Option {
	return append([]Option{
		WithClock(c),
		WithRand(rand.New(rand.NewSource(7))),
		WithDelays(testDelays),
		WithLogger(quietLogger()),
	}, extra...)
}

// stubGuard blocks the listed categories.
type stubGuard struct {
	blocked map[actions.Category]bool
	err     error
}

func (g stubGuard) Allow(_ context.Context, _ string, c actions.Category) (bool, error) {
	return !g.blocked[c], g.err
}

func (g stubGuard) Wait(context.Context, string) error { return nil }
