// Package oidc is the OpenID Connect extension point for the module: it
// discovers a provider's endpoints from its issuer URL and gives access to
// the claims carried by an id_token.
//
// Claims access is deliberately unverified: the id_token reaches this
// module over the TLS channel of the token endpoint the application itself
// configured, and the module doesn't make authorization decisions based on
// it. Hosts that need verified claims should use a full JOSE validator.
package oidc
