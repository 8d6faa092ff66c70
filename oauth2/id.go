package oauth2

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// idByteLen is the number of random bytes in a generated ID. 24 bytes
// encodes to 32 base64url characters and carries 192 bits of entropy, which
// satisfies the 128-bit minimum for anti-CSRF state tokens.
const idByteLen = 24

// NewID generates an ID with an optional prefix. The ID generated is
// suitable for a PendingFlow's State or Nonce, since it's cryptographically
// random and of sufficient length.
// Supported options: WithPrefix
func NewID(opt ...Option) (string, error) {
	const op = "oauth2.NewID"
	opts := getIDOpts(opt...)
	data, err := uuid.GenerateRandomBytes(idByteLen)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, ErrIdGeneratorFailed)
	}
	id := base64.RawURLEncoding.EncodeToString(data)
	switch {
	case opts.withPrefix != "":
		return fmt.Sprintf("%s_%s", opts.withPrefix, id), nil
	default:
		return id, nil
	}
}

// idOptions is the set of available options for NewID
type idOptions struct {
	withPrefix string
}

// idDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func idDefaults() idOptions {
	return idOptions{}
}

// getIDOpts gets the defaults and applies the opt overrides passed in.
func getIDOpts(opt ...Option) idOptions {
	opts := idDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
