package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExecutor struct {
	loginErr   error
	closeErr   error
	loginCalls int
	closeCalls int
}

func (e *countingExecutor) Login(context.Context) error {
	e.loginCalls++
	return e.loginErr
}

func (e *countingExecutor) LikePosts(context.Context, string, int) (int, error) { return 0, nil }

func (e *countingExecutor) InteractWithStory(context.Context, string, actions.StoryRequest) (actions.StoryResult, error) {
	return actions.StoryResult{}, nil
}

func (e *countingExecutor) SendDirectMessage(context.Context, string, string) (bool, error) {
	return false, nil
}

func (e *countingExecutor) Close() error {
	e.closeCalls++
	return e.closeErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestCoordinator_LoginOnce(t *testing.T) {
	exec := &countingExecutor{}
	c := New("bot1", exec, testLogger())

	require.NoError(t, c.Login(context.Background()))
	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, 1, exec.loginCalls)
	assert.True(t, c.LoggedIn())
	assert.Equal(t, "bot1", c.Account())
}

func TestCoordinator_LoginFailure(t *testing.T) {
	exec := &countingExecutor{loginErr: errors.New("bad password")}
	c := New("bot1", exec, testLogger())

	err := c.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Contains(t, err.Error(), "bad password")

	// Cached failure, no second attempt.
	assert.ErrorIs(t, c.Login(context.Background()), ErrLoginFailed)
	assert.Equal(t, 1, exec.loginCalls)
	assert.False(t, c.LoggedIn())
}

func TestCoordinator_CloseIdempotent(t *testing.T) {
	t.Run("before login", func(t *testing.T) {
		exec := &countingExecutor{}
		c := New("bot1", exec, testLogger())
		assert.NotPanics(t, func() {
			assert.NoError(t, c.Close())
			assert.NoError(t, c.Close())
		})
		assert.Equal(t, 1, exec.closeCalls)
	})

	t.Run("after login", func(t *testing.T) {
		exec := &countingExecutor{}
		c := New("bot1", exec, testLogger())
		require.NoError(t, c.Login(context.Background()))
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
		assert.Equal(t, 1, exec.closeCalls)
		assert.False(t, c.LoggedIn())
		assert.ErrorIs(t, c.Login(context.Background()), ErrClosed)
	})

	t.Run("executor error reported once", func(t *testing.T) {
		exec := &countingExecutor{closeErr: errors.New("browser gone")}
		c := New("bot1", exec, testLogger())
		assert.Error(t, c.Close())
		assert.NoError(t, c.Close())
	})
}
