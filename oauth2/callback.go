package oauth2

import "net/url"

// AuthResponse holds the standard OAuth2 parameters an authorization server
// sends back on the redirect URL (RFC 6749 section 4.1.2).
type AuthResponse struct {
	// Code is the authorization code, present on success
	Code string

	// State is the anti-CSRF state token echoed back by the server
	State string

	// Error is the error code, present when the server denied the request
	Error string

	// ErrorDescription is the optional human-readable error description
	ErrorDescription string

	// ErrorURI is the optional URI with further error information
	ErrorURI string
}

// ParseAuthResponse extracts the authorization-response parameters from the
// query of a redirect URL.
func ParseAuthResponse(q url.Values) *AuthResponse {
	return &AuthResponse{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		ErrorURI:         q.Get("error_uri"),
	}
}

// IsCallback reports whether the query looked like an authorization response
// at all: it carried either a code or an error.
func (r *AuthResponse) IsCallback() bool {
	return r.Code != "" || r.Error != ""
}

// Err returns an *AuthorizationError if the server returned an error
// parameter, and nil otherwise.
func (r *AuthResponse) Err() error {
	if r.Error == "" {
		return nil
	}
	return &AuthorizationError{
		Code:        r.Error,
		Description: r.ErrorDescription,
		Uri:         r.ErrorURI,
	}
}
