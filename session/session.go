// Package session owns one account's login lifecycle for the duration of a run.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
)

// ErrLoginFailed is returned when an account cannot establish a session.
var ErrLoginFailed = errors.New("login failed")

// ErrClosed is returned by Login after Close.
var ErrClosed = errors.New("session closed")

// Coordinator wraps an Executor with at-most-once login and idempotent close.
type Coordinator struct {
	account  string
	executor actions.Executor
	logger   *slog.Logger

	mu        sync.Mutex
	attempted bool
	loginErr  error
	closed    bool
}

// New creates a Coordinator for account.
func New(account string, executor actions.Executor, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		account:  account,
		executor: executor,
		logger:   logger.With("account", account),
	}
}

// Account returns the account id.
func (c *Coordinator) Account() string {
	return c.account
}

// Executor returns the underlying executor.
func (c *Coordinator) Executor() actions.Executor {
	return c.executor
}

// Login logs in once. Later calls return the result of the first attempt
// without contacting the site again.
func (c *Coordinator) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.attempted {
		return c.loginErr
	}
	c.attempted = true

	c.logger.Info("logging in")
	if err := c.executor.Login(ctx); err != nil {
		c.loginErr = fmt.Errorf("%w for %s: %w", ErrLoginFailed, c.account, err)
		c.logger.Error("login failed", "error", err)
		return c.loginErr
	}
	c.logger.Info("logged in")
	return nil
}

// LoggedIn reports whether Login succeeded and the session is still open.
func (c *Coordinator) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempted && c.loginErr == nil && !c.closed
}

// Close releases the session. It is safe to call before Login and more than once;
// only the first call reaches the executor.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.executor.Close(); err != nil {
		c.logger.Warn("closing session", "error", err)
		return fmt.Errorf("closing session for %s: %w", c.account, err)
	}
	c.logger.Debug("session closed")
	return nil
}
