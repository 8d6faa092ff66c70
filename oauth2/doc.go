// Package oauth2 provides the protocol pieces of a client-side OAuth2
// authorization-code flow with PKCE (RFC 7636, S256 only): client
// configuration and validation, pending-flow state (anti-CSRF state token,
// nonce, code verifier), the token set model, authorization-response
// parsing, and a token-endpoint client over an abstract HTTP adapter.
//
// The package performs no navigation and owns no session state. The agent
// package composes these pieces into the observable authentication state
// machine that front-end code interacts with.
//
// A primary design concept is the PendingFlow: it represents one in-flight
// login across the redirect to the provider and back, and must be persisted
// by the caller (typically via the agent's storage adapter) because the
// redirect usually reloads the hosting page.
//
//	cfg, err := oauth2.NewConfig(
//		"client-id",
//		"https://idp.example/auth",
//		"https://idp.example/token",
//		oauth2.WithScopes("profile"),
//		oauth2.WithRedirectURL("https://app.example/callback"),
//	)
//	if err != nil {
//		// handle invalid config
//	}
//	client, err := oauth2.NewClient(cfg)
//	flow, err := oauth2.NewPendingFlow(oauth2.DefaultPendingFlowExpiry)
//	url, err := client.AuthCodeURL(flow)
//	// navigate the user to url ...
//	// ... and on the redirect back:
//	resp := oauth2.ParseAuthResponse(query)
//	tok, err := client.Exchange(ctx, flow, resp.Code)
package oauth2
