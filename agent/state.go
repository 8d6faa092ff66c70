package agent

import (
	"fmt"

	"github.com/webauth-go/webauth/oauth2"
)

// Status enumerates the observable authentication states of an Agent.
type Status int

const (
	// StatusNotAuthenticated is the initial state, and the state after a
	// logout
	StatusNotAuthenticated Status = iota

	// StatusLoggingIn means a login flow is outstanding: the user has been
	// (or is about to be) sent to the provider, or the redirect callback is
	// being processed
	StatusLoggingIn

	// StatusAuthenticated means a token set is present
	StatusAuthenticated

	// StatusFailed means the last operation failed in a way that requires a
	// new StartLogin to recover
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusNotAuthenticated:
		return "not-authenticated"
	case StatusLoggingIn:
		return "logging-in"
	case StatusAuthenticated:
		return "authenticated"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown-status-%d", int(s))
	}
}

// AuthState is a snapshot of the agent's state machine. Exactly one
// AuthState is authoritative per agent at any time; subscribers observe
// every transition in the order it was applied. The Token field is a copy:
// mutating it never affects the agent.
type AuthState struct {
	// Status is the state machine value
	Status Status

	// Token is the current token set; only set when Status is
	// StatusAuthenticated
	Token *oauth2.Token

	// Err is the reason for the failure; only set when Status is
	// StatusFailed
	Err error
}

// Authenticated reports whether the state carries a token set.
func (s AuthState) Authenticated() bool { return s.Status == StatusAuthenticated }
