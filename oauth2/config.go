package oauth2

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-multierror"
	sdkHttp "github.com/webauth-go/webauth/sdk/http"
)

// DefaultPostLogoutParameter is the query parameter name used to convey the
// post-logout redirect URL to the provider's end-session endpoint, per OpenID
// RP-initiated logout. Some older providers (e.g. old Keycloak) require
// "redirect_uri" instead, which WithPostLogoutParameter supports.
const DefaultPostLogoutParameter = "post_logout_redirect_uri"

// Config describes an OAuth2 client using the authorization-code flow with
// PKCE. It's validated once at construction and owned by the values built
// from it (Client, Agent) for their lifetime; don't mutate it afterward.
//
// There is no client secret: this config describes a public client, where
// PKCE binds the authorization code to the client that requested it.
type Config struct {
	// ClientID is the oauth client identifier
	ClientID string

	// AuthURL is the provider's authorization endpoint
	AuthURL string

	// TokenURL is the provider's token endpoint
	TokenURL string

	// Scopes is an optional list of scopes to request. Order is preserved in
	// the authorization request.
	Scopes []string

	// RedirectURL is the optional default redirect_uri sent with
	// authorization requests
	RedirectURL string

	// EndSessionURL is the provider's optional end-session (logout) endpoint
	EndSessionURL string

	// PostLogoutRedirectURL is the optional URL to send the user to after
	// the provider completes a logout
	PostLogoutRedirectURL string

	// PostLogoutParameter is the query parameter name used for the
	// post-logout redirect. Empty means DefaultPostLogoutParameter.
	PostLogoutParameter string

	// Audience is an optional audience value added to authorization requests
	// as an "audience" query parameter (used by e.g. Auth0)
	Audience string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider
	ProviderCA string
}

// NewConfig composes a new client config and validates it.
// Supported options: WithScopes, WithRedirectURL, WithEndSessionURL,
// WithPostLogoutRedirectURL, WithPostLogoutParameter, WithAudience,
// WithProviderCA
func NewConfig(clientID string, authURL string, tokenURL string, opt ...Option) (*Config, error) {
	const op = "oauth2.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:              clientID,
		AuthURL:               authURL,
		TokenURL:              tokenURL,
		Scopes:                opts.withScopes,
		RedirectURL:           opts.withRedirectURL,
		EndSessionURL:         opts.withEndSessionURL,
		PostLogoutRedirectURL: opts.withPostLogoutRedirectURL,
		PostLogoutParameter:   opts.withPostLogoutParameter,
		Audience:              opts.withAudience,
		ProviderCA:            opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Validate the client configuration. All violations are reported together
// (see go-multierror), and the returned error matches ErrInvalidConfig. No
// network access occurs during validation.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, errors.New("client id is empty"))
	}
	if err := validateAbsoluteURL("auth URL", c.AuthURL); err != nil {
		result = multierror.Append(result, err)
	}
	if err := validateAbsoluteURL("token URL", c.TokenURL); err != nil {
		result = multierror.Append(result, err)
	}
	if c.RedirectURL != "" {
		if err := validateAbsoluteURL("redirect URL", c.RedirectURL); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.EndSessionURL != "" {
		if err := validateAbsoluteURL("end session URL", c.EndSessionURL); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrInvalidConfig)
	}
	return nil
}

func validateAbsoluteURL(name string, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is invalid: %v", name, raw, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%s %q is not absolute", name, raw)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s %q scheme %s is not http or https", name, raw, u.Scheme)
	}
	return nil
}

// HttpClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	client, err := sdkHttp.NewClient(c.ProviderCA)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Scopes = append([]string(nil), c.Scopes...)
	return &cp
}

// postLogoutParameter returns the configured post-logout parameter name or
// the default.
func (c *Config) postLogoutParameter() string {
	if c.PostLogoutParameter != "" {
		return c.PostLogoutParameter
	}
	return DefaultPostLogoutParameter
}

// configOptions is the set of available options for Config functions
type configOptions struct {
	withScopes                []string
	withRedirectURL           string
	withEndSessionURL         string
	withPostLogoutRedirectURL string
	withPostLogoutParameter   string
	withAudience              string
	withProviderCA            string
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes to request.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithEndSessionURL provides an optional end-session (logout) endpoint.
func WithEndSessionURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withEndSessionURL = u
		}
	}
}

// WithPostLogoutRedirectURL provides an optional URL to send the user to
// after the provider completes a logout, for: Config (the default),
// Client.LogoutURL (an override for one logout).
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withPostLogoutRedirectURL = u
		case *logoutOptions:
			v.withPostLogoutRedirectURL = u
		}
	}
}

// WithPostLogoutParameter overrides the query parameter name used for the
// post-logout redirect (default "post_logout_redirect_uri").
func WithPostLogoutParameter(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutParameter = name
		}
	}
}

// WithAudience provides an optional audience for authorization requests.
func WithAudience(audience string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudience = audience
		}
	}
}

// WithProviderCA provides an optional CA cert for requests to the provider.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}
