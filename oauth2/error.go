package oauth2

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidConfig              = errors.New("invalid config")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrIdGeneratorFailed          = errors.New("id generation failed")
	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")
	ErrExpiredPendingFlow         = errors.New("pending flow is expired")
	ErrAuthorizationDenied        = errors.New("authorization denied")
	ErrTokenExchangeFailed        = errors.New("token exchange failed")
	ErrNetworkFailure             = errors.New("network failure")
)

// ErrRefreshDenied is a definitive rejection of a refresh-token grant
// (typically a revoked or expired refresh token). It also matches
// ErrTokenExchangeFailed.
var ErrRefreshDenied = fmt.Errorf("refresh denied: %w", ErrTokenExchangeFailed)

// AuthorizationError represents an OAuth2 authorization error response: the
// provider redirected back with an error parameter instead of an
// authorization code (see RFC 6749 section 4.1.2.1).
type AuthorizationError struct {
	// Code is the value of the "error" response parameter
	Code string

	// Description is the optional "error_description" response parameter
	Description string

	// Uri is the optional "error_uri" response parameter
	Uri string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Code)
}

// Unwrap makes AuthorizationError match ErrAuthorizationDenied with
// errors.Is.
func (e *AuthorizationError) Unwrap() error { return ErrAuthorizationDenied }

// TokenExchangeError represents a definitive failure from the token
// endpoint: a non-2xx status or a malformed success body. The raw response
// body is retained for diagnostics.
type TokenExchangeError struct {
	// Status is the HTTP status code of the response, or zero if the body
	// could not be parsed
	Status int

	// Body is the raw response body
	Body string

	// ErrorCode is the "error" field of an RFC 6749 error response body, if
	// the body parsed as one
	ErrorCode string

	wrapped error
}

// Error implements the error interface.
func (e *TokenExchangeError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.ErrorCode)
	}
	return fmt.Sprintf("token exchange failed: status %d", e.Status)
}

// Unwrap returns ErrRefreshDenied when the server definitively rejected a
// refresh token grant, and ErrTokenExchangeFailed otherwise.
func (e *TokenExchangeError) Unwrap() error {
	if e.wrapped != nil {
		return e.wrapped
	}
	return ErrTokenExchangeFailed
}
