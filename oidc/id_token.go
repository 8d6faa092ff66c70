package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/webauth-go/webauth/oauth2"
)

// Claims unmarshals the payload claims of an id_token into dst (anything
// encoding/json can unmarshal into: a struct with json tags, a
// map[string]interface{}, ...). The token's signature is NOT verified.
func Claims(t oauth2.IdToken, dst interface{}) error {
	const op = "oidc.Claims"
	if dst == nil {
		return fmt.Errorf("%s: dst is nil: %w", op, oauth2.ErrNilParameter)
	}
	m, err := parseUnverified(t)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%s: unable to encode claims: %w", op, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%s: unable to decode claims into dst: %w", op, err)
	}
	return nil
}

// Expiry returns the id_token's exp claim. A token without one returns a
// zero time and no error. The token's signature is NOT verified.
func Expiry(t oauth2.IdToken) (time.Time, error) {
	const op = "oidc.Expiry"
	m, err := parseUnverified(t)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	exp, err := m.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid exp claim: %v: %w", op, err, ErrMalformedIDToken)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

func parseUnverified(t oauth2.IdToken) (jwt.MapClaims, error) {
	if t == "" {
		return nil, fmt.Errorf("id token is empty: %w", oauth2.ErrInvalidParameter)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(t), claims); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedIDToken)
	}
	return claims, nil
}
