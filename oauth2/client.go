package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	sdkHttp "github.com/webauth-go/webauth/sdk/http"
)

// Doer is anything that can execute an http request. An adapter caller may
// supply one via WithDoer to intercept the client's token-endpoint traffic
// (platform webviews, test stubs).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a single authorization server's endpoints on behalf of
// one registered application. It builds authorization URLs, exchanges
// authorization codes and refresh tokens through golang.org/x/oauth2, and
// builds RP-initiated logout URLs. A Client is safe for concurrent use.
type Client struct {
	config *Config
	client *http.Client
	logger hclog.Logger
	nowFn  func() time.Time
}

// NewClient creates a Client for the given config. The config is cloned, so
// later mutation of the caller's copy has no effect.
// Supported options: WithDoer, WithLogger, WithNow
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "oauth2.NewClient"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getClientOpts(opt...)

	client := &Client{
		config: c.Clone(),
		logger: opts.withLogger,
		nowFn:  opts.withNowFunc,
	}
	switch d := opts.withDoer.(type) {
	case nil:
		hc, err := c.HttpClient()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
		client.client = hc
	case *http.Client:
		client.client = d
	default:
		client.client = &http.Client{Transport: doerTransport{d}}
	}
	return client, nil
}

// Config returns the client's (cloned) config.
func (c *Client) Config() *Config { return c.config.Clone() }

// doerTransport adapts a Doer into the http.RoundTripper the underlying
// oauth2 and oidc layers require.
type doerTransport struct {
	d Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.d.Do(req)
}

// callCtx carries the Client's http client in the context, which is how
// both go-oidc and x/oauth2 pick up a non-default client.
func (c *Client) callCtx(ctx context.Context) context.Context {
	return sdkHttp.ClientContext(ctx, c.client)
}

// oauth2Config assembles the x/oauth2 config for a single call. The client
// is public, so client credentials always travel in the form body.
func (c *Client) oauth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.config.ClientID,
		RedirectURL: redirectURL,
		Scopes:      append([]string(nil), c.config.Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.config.AuthURL,
			TokenURL:  c.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the authorization-endpoint URL that starts the
// authorization code flow described by f: response_type=code plus the
// flow's state, nonce and S256 code challenge, and the config's audience
// when one is set. The user agent should be navigated to the returned URL.
func (c *Client) AuthCodeURL(f *PendingFlow) (string, error) {
	const op = "Client.AuthCodeURL"
	if f == nil {
		return "", fmt.Errorf("%s: pending flow is nil: %w", op, ErrNilParameter)
	}
	authCodeOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", f.Nonce()),
		oauth2.S256ChallengeOption(f.Verifier().Verifier()),
	}
	if c.config.Audience != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("audience", c.config.Audience))
	}
	return c.oauth2Config(c.redirectURLFor(f)).AuthCodeURL(f.State(), authCodeOpts...), nil
}

// Exchange redeems an authorization code for a Token, presenting the
// pending flow's code verifier. The redirect_uri sent must match the one
// used in AuthCodeURL, so the same flow must be supplied to both.
func (c *Client) Exchange(ctx context.Context, f *PendingFlow, code string) (*Token, error) {
	const op = "Client.Exchange"
	if f == nil {
		return nil, fmt.Errorf("%s: pending flow is nil: %w", op, ErrNilParameter)
	}
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	c.log("exchanging authorization code")
	tok, err := c.oauth2Config(c.redirectURLFor(f)).Exchange(
		c.callCtx(ctx),
		code,
		oauth2.VerifierOption(f.Verifier().Verifier()),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code: %w", op, c.convertError(err, false))
	}
	return c.convertToken(tok), nil
}

// Refresh redeems refreshToken for a fresh Token via the refresh_token
// grant. When the server rotates refresh tokens the returned Token carries
// the new one; when it doesn't, the returned Token carries refreshToken
// back, so callers can always retain the returned value.
func (c *Client) Refresh(ctx context.Context, refreshToken RefreshToken) (*Token, error) {
	const op = "Client.Refresh"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	c.log("exchanging refresh token")
	src := c.oauth2Config(c.config.RedirectURL).TokenSource(c.callCtx(ctx), &oauth2.Token{
		RefreshToken: string(refreshToken),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange refresh token: %w", op, c.convertError(err, true))
	}
	return c.convertToken(tok), nil
}

// LogoutURL builds the provider's end-session URL for an RP-initiated
// logout. It returns an empty string (and no error) when no end-session
// endpoint is configured: the protocol doesn't guarantee server-side session
// termination without one.
// Supported options: WithPostLogoutRedirectURL (overriding the configured
// default), WithIDTokenHint
func (c *Client) LogoutURL(opt ...Option) (string, error) {
	const op = "Client.LogoutURL"
	if c.config.EndSessionURL == "" {
		return "", nil
	}
	opts := getLogoutOpts(opt...)
	u, err := url.Parse(c.config.EndSessionURL)
	if err != nil {
		return "", fmt.Errorf("%s: end session URL is invalid: %w", op, ErrInvalidConfig)
	}
	postLogout := opts.withPostLogoutRedirectURL
	if postLogout == "" {
		postLogout = c.config.PostLogoutRedirectURL
	}
	q := u.Query()
	q.Set("client_id", c.config.ClientID)
	if opts.withIDTokenHint != "" {
		q.Set("id_token_hint", string(opts.withIDTokenHint))
	}
	if postLogout != "" {
		q.Set(c.config.postLogoutParameter(), postLogout)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redirectURLFor resolves the redirect URL for a flow: the flow's override
// when one was captured, otherwise the config's RedirectURL.
func (c *Client) redirectURLFor(f *PendingFlow) string {
	if f.RedirectURL() != "" {
		return f.RedirectURL()
	}
	return c.config.RedirectURL
}

// convertToken maps an x/oauth2 token into this package's Token. The
// expiry is recomputed from the raw expires_in against the Client's clock
// so that schedules derived from it line up with an injected now func.
func (c *Client) convertToken(t *oauth2.Token) *Token {
	tok := &Token{
		AccessToken:  AccessToken(t.AccessToken),
		TokenType:    t.TokenType,
		RefreshToken: RefreshToken(t.RefreshToken),
	}
	if id, ok := t.Extra("id_token").(string); ok {
		tok.IdToken = IdToken(id)
	}
	if secs, ok := t.Extra("expires_in").(float64); ok && secs > 0 {
		tok.Expiry = c.nowFn().Add(time.Duration(secs) * time.Second)
	} else if !t.Expiry.IsZero() {
		tok.Expiry = t.Expiry
	}
	return tok
}

// convertError maps an x/oauth2 failure onto this package's taxonomy. An
// error response from the token endpoint becomes a TokenExchangeError
// carrying the status, raw body and RFC 6749 error code; a refresh-grant
// invalid_grant additionally matches ErrRefreshDenied. A transport failure
// matches ErrNetworkFailure, so callers can treat it as retryable. Anything
// else (an unparseable success body, a response missing its access token)
// is a definitive exchange failure.
func (c *Client) convertError(err error, refreshGrant bool) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		exchangeErr := &TokenExchangeError{
			Body:      string(rErr.Body),
			ErrorCode: rErr.ErrorCode,
		}
		if rErr.Response != nil {
			exchangeErr.Status = rErr.Response.StatusCode
		}
		if refreshGrant && exchangeErr.ErrorCode == "invalid_grant" {
			exchangeErr.wrapped = ErrRefreshDenied
		}
		return exchangeErr
	}
	var uErr *url.Error
	if errors.As(err, &uErr) {
		return fmt.Errorf("token endpoint request failed: %v: %w", err, ErrNetworkFailure)
	}
	return &TokenExchangeError{Body: err.Error()}
}

func (c *Client) log(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// clientOptions is the set of available options for Client functions
type clientOptions struct {
	withDoer    Doer
	withLogger  hclog.Logger
	withNowFunc func() time.Time
}

// clientDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func clientDefaults() clientOptions {
	return clientOptions{
		withNowFunc: time.Now,
	}
}

// getClientOpts gets the defaults and applies the opt overrides passed in.
func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithDoer provides an optional HTTP adapter used to reach the token
// endpoint, replacing the default client built from the config.
func WithDoer(d Doer) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withDoer = d
		}
	}
}

// WithLogger provides an optional hclog.Logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withLogger = l
		}
	}
}

// logoutOptions is the set of available options for Client.LogoutURL
type logoutOptions struct {
	withPostLogoutRedirectURL string
	withIDTokenHint           IdToken
}

// getLogoutOpts gets the defaults and applies the opt overrides passed in.
func getLogoutOpts(opt ...Option) logoutOptions {
	opts := logoutOptions{}
	ApplyOpts(&opts, opt...)
	return opts
}

// WithIDTokenHint provides an optional id_token_hint for the end-session
// request.
func WithIDTokenHint(t IdToken) Option {
	return func(o interface{}) {
		if o, ok := o.(*logoutOptions); ok {
			o.withIDTokenHint = t
		}
	}
}
