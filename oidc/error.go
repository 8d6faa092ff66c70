package oidc

import "errors"

var (
	// ErrDiscoveryFailed indicates the issuer's discovery document could
	// not be fetched or didn't parse.
	ErrDiscoveryFailed = errors.New("oidc discovery failed")

	// ErrMalformedIDToken indicates an id_token that isn't a compact JWT.
	ErrMalformedIDToken = errors.New("malformed id_token")
)
