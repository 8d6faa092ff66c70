package agent

import (
	"errors"
)

var (
	// ErrMissingPendingFlow means a redirect callback arrived but no pending
	// flow was persisted: the flow was abandoned, already consumed, or the
	// storage was cleared.
	ErrMissingPendingFlow = errors.New("no pending login flow")

	// ErrStateMismatch means the state parameter of the redirect callback
	// didn't match the persisted pending flow's state.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrTokenExpired means the access token expired and there's no refresh
	// token to renew it with; a new login is required.
	ErrTokenExpired = errors.New("access token expired and no refresh token")

	// ErrSuperseded means an async operation completed after another
	// operation had already moved the state machine on; its result was
	// discarded.
	ErrSuperseded = errors.New("operation superseded")

	// ErrKeyNotFound is returned by Storage implementations when a key has
	// no value.
	ErrKeyNotFound = errors.New("key not found")
)
