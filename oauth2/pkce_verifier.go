package oauth2

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// ChallengeMethod represents PKCE code challenge methods as defined by RFC
// 7636.
type ChallengeMethod string

const (
	// PKCE code challenge methods as defined by RFC 7636.  The "plain"
	// method is intentionally not supported: S256 is mandatory-to-implement
	// on the server side and there's no reason to downgrade.
	S256 ChallengeMethod = "S256" // SHA-256
)

// verifierLen is the length of the generated verifier. RFC 7636 requires
// 43 to 128 chars; 32 random bytes base64url-encode to exactly 43.
const verifierLen = 43

// CodeVerifier represents an OAuth PKCE code verifier (RFC 7636) using the
// S256 challenge method.
type CodeVerifier interface {
	// Verifier returns the code verifier
	Verifier() string

	// Challenge returns the code challenge derived from the verifier
	Challenge() string

	// Method returns the code challenge method
	Method() ChallengeMethod

	// Copy returns a copy of the verifier
	Copy() CodeVerifier
}

// S256Verifier represents an OAuth PKCE code verifier that uses the S256
// challenge method.
type S256Verifier struct {
	verifier  string
	challenge string
	method    ChallengeMethod
}

// ensure that S256Verifier implements the CodeVerifier interface.
var _ CodeVerifier = (*S256Verifier)(nil)

// NewCodeVerifier creates a new CodeVerifier (*S256Verifier) using a
// cryptographically secure random source.
func NewCodeVerifier() (*S256Verifier, error) {
	const op = "oauth2.NewCodeVerifier"
	data, err := uuid.GenerateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate verifier data: %w", op, err)
	}
	v := &S256Verifier{
		verifier: base64.RawURLEncoding.EncodeToString(data), // 43 chars
		method:   S256,
	}
	if v.challenge, err = CreateCodeChallenge(S256, v); err != nil {
		return nil, fmt.Errorf("%s: unable to create code challenge: %w", op, err)
	}
	return v, nil
}

// RestoreCodeVerifier recreates an S256Verifier from a verifier string that
// was previously persisted (e.g. across a redirect-triggered page reload).
func RestoreCodeVerifier(verifier string) (*S256Verifier, error) {
	const op = "oauth2.RestoreCodeVerifier"
	if verifier == "" {
		return nil, fmt.Errorf("%s: verifier is empty: %w", op, ErrInvalidParameter)
	}
	v := &S256Verifier{
		verifier: verifier,
		method:   S256,
	}
	var err error
	if v.challenge, err = CreateCodeChallenge(S256, v); err != nil {
		return nil, fmt.Errorf("%s: unable to create code challenge: %w", op, err)
	}
	return v, nil
}

func (v *S256Verifier) Verifier() string        { return v.verifier }  // Verifier implements CodeVerifier.Verifier()
func (v *S256Verifier) Challenge() string       { return v.challenge } // Challenge implements CodeVerifier.Challenge()
func (v *S256Verifier) Method() ChallengeMethod { return v.method }    // Method implements CodeVerifier.Method()

// Copy a S256Verifier.
func (v *S256Verifier) Copy() CodeVerifier {
	return &S256Verifier{
		verifier:  v.verifier,
		challenge: v.challenge,
		method:    v.method,
	}
}

// CreateCodeChallenge creates a code challenge from the verifier. Supported
// ChallengeMethods: S256
func CreateCodeChallenge(method ChallengeMethod, verifier CodeVerifier) (string, error) {
	// not an exported enum, since we only support S256 at this point
	switch method {
	case S256:
		h := sha256.New()
		_, _ = h.Write([]byte(verifier.Verifier())) // hash documents it never returns an error
		sum := h.Sum(nil)
		return base64.RawURLEncoding.EncodeToString(sum), nil
	default:
		return "", fmt.Errorf("oauth2.CreateCodeChallenge: %s: %w", method, ErrUnsupportedChallengeMethod)
	}
}
