// webauth is a collection of packages for client-side OAuth2 / OIDC
// authentication: an agent that drives the authorization-code flow with
// PKCE and keeps the resulting token set fresh.
//
// The agent package is the main entry point: it starts logins, consumes
// redirect callbacks, schedules token refreshes and publishes every
// authentication state transition to subscribers.
//
// The oauth2 package holds the protocol pieces the agent is built from
// (config, PKCE verifiers, state tokens, the token-endpoint client) and
// can be used on its own by hosts that want to drive the flow themselves.
//
// The oidc package adds OpenID Connect discovery and unverified id_token
// claim access on top.
package webauth
