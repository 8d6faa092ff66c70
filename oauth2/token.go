package oauth2

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenExpirySkew defines the safety margin subtracted from a token's
// expiry: a token is reported expired this long before it actually is, so a
// refresh can complete before the access token stops working.
const DefaultTokenExpirySkew = 30 * time.Second

// Token represents the set of tokens obtained from the token endpoint after
// a successful authorization-code exchange or refresh-token grant. A Token
// is a value snapshot: the agent owns the authoritative copy and hands out
// clones.
type Token struct {
	// AccessToken is the token that authorizes and authenticates the
	// requests
	AccessToken AccessToken

	// TokenType is the type of the access token (typically "Bearer")
	TokenType string

	// RefreshToken is an optional token that's used by the application to
	// refresh the access token once it expires
	RefreshToken RefreshToken

	// IdToken is an optional oidc id_token
	IdToken IdToken

	// Expiry is the optional expiration time of the access token. A zero
	// value means the token never expires (or the provider didn't say), and
	// it's treated as valid until a request fails.
	Expiry time.Time
}

// Expired returns true if the token is expired or inside the skew window
// before its expiry. A token without an expiry never reports expired.
// Supported options: WithExpirySkew (default DefaultTokenExpirySkew), WithNow
func (t *Token) Expired(opt ...Option) bool {
	if t == nil {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	opts := getTokenOpts(opt...)
	return t.Expiry.Round(0).Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// Valid returns true if the token has an access token which isn't expired.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return !t.Expired()
}

// Clone returns a copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// StaticTokenSource returns a TokenSource that always returns the same
// token, which allows callers to use the current access token with packages
// built on golang.org/x/oauth2 (API clients, etc). Since the token isn't
// refreshed by the source, it's intended for use with a Token that has been
// recently acquired or refreshed by the agent.
func (t *Token) StaticTokenSource() oauth2.TokenSource {
	if t == nil {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: string(t.AccessToken),
		TokenType:   t.TokenType,
		Expiry:      t.Expiry,
	})
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

// tokenDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: DefaultTokenExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getTokenOpts gets the defaults and applies the opt overrides passed in.
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
