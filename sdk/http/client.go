// Package http builds the http clients the module uses to reach an
// authorization server, and provides the context plumbing that routes
// requests made by the underlying oidc and oauth2 layers through them.
package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

// ErrInvalidCertificatePem reports a caPEM value that yielded no usable
// certificates.
var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// NewClient creates an http client for provider endpoints, built on a
// pooled transport. A non-empty caPEM replaces the system roots with the
// given CA pool, which is how providers running private PKI are reached.
// The transport pools connections, so a client should be reused rather
// than rebuilt per request.
func NewClient(caPEM string) (*http.Client, error) {
	const op = "http.NewClient"
	tr := cleanhttp.DefaultPooledTransport()
	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, fmt.Errorf("%s: could not build a CA pool from the PEM provided: %w", op, ErrInvalidCertificatePem)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}
	return &http.Client{
		Transport: tr,
	}, nil
}

// ClientContext returns a new Context that carries client. Both
// github.com/coreos/go-oidc and golang.org/x/oauth2 read the same context
// key, so discovery fetches and token-endpoint calls made under the
// returned context all use client. Every token exchange and refresh in
// this module runs through a context built here.
func ClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}
