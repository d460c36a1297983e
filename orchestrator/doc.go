// Package orchestrator runs a session: it distributes targets across the
// selected accounts and drives one account worker per account, concurrently
// up to a configured bound.
//
// # Account lifecycle
//
// Every account in a plan has a Result from the moment Execute starts:
//
//	NotStarted -> Pending -> Running -> Completed
//	                 \-> Skipped (stopped before its worker began)
//
// A Completed account may still have failed: Result.Error carries login
// failures, the session timeout or cancellation, and Result.Report the partial
// RunReport. Errors never cross account boundaries; one account failing or
// being stopped leaves the others running.
//
// # Concurrency
//
// At most MaxParallel workers run at once. When a plan selects more accounts
// than that, the overflow policy decides: OverflowReject fails the plan with
// ErrTooManyAccounts, OverflowQueue runs the accounts in waves of BatchSize
// with BatchDelay between waves. Inside a wave, worker i waits
// AccountStart x i before logging in.
//
// # Stopping
//
// Stop(account) cancels one account. Its current target finishes; the runner
// observes the cancellation before the next target.
package orchestrator
