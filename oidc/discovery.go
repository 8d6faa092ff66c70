package oidc

import (
	"context"
	"fmt"

	coreosoidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/webauth-go/webauth/oauth2"
)

// Discover fetches the issuer's OIDC discovery document and builds an
// oauth2.Config from it: authorization endpoint, token endpoint and (when
// the provider advertises one) the end-session endpoint. Any options are
// passed through to oauth2.NewConfig, so the caller supplies redirect URL,
// scopes, etc the usual way; an explicit oauth2.WithEndSessionURL wins
// over the discovered one.
//
// The discovery request uses the HTTP client carried by ctx (see
// sdk/http.ClientContext), falling back to http.DefaultClient. Providers
// with a private CA therefore work by putting a client from
// sdk/http.NewClient into the context.
func Discover(ctx context.Context, issuer string, clientID string, opt ...oauth2.Option) (*oauth2.Config, error) {
	const op = "oidc.Discover"
	switch {
	case issuer == "":
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, oauth2.ErrInvalidParameter)
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, oauth2.ErrInvalidParameter)
	}

	provider, err := coreosoidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: issuer %q: %v: %w", op, issuer, err, ErrDiscoveryFailed)
	}
	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: issuer %q: %v: %w", op, issuer, err, ErrDiscoveryFailed)
	}

	opts := opt
	if claims.EndSessionEndpoint != "" {
		// prepend so an explicit caller option overrides it
		opts = append([]oauth2.Option{oauth2.WithEndSessionURL(claims.EndSessionEndpoint)}, opt...)
	}
	ep := provider.Endpoint()
	c, err := oauth2.NewConfig(clientID, ep.AuthURL, ep.TokenURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
