package oauth2

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultPendingFlowExpiry is how long a user has to complete a login
// redirect before the pending flow is considered abandoned.
const DefaultPendingFlowExpiry = 10 * time.Minute

// DefaultFlowExpirySkew defines a default time skew when checking a
// PendingFlow's expiration.
const DefaultFlowExpirySkew = 1 * time.Second

// PendingFlow represents one outstanding authorization-code flow: the data
// that must survive the round trip through the provider's authorization
// endpoint and back. It's created when a login starts, persisted via the
// agent's storage, and consumed exactly once when the redirect callback is
// handled (success or failure), never reused.
//
// State() is the anti-CSRF token passed throughout the flow, and Nonce() is
// the oidc nonce bound to any resulting id_token. State() and Nonce() are
// never equal.
type PendingFlow struct {
	// state is an opaque anti-CSRF token used to maintain state between the
	// authorization request and the redirect callback
	state string

	// nonce is a unique nonce suitable for use as an oidc nonce
	nonce string

	// verifier is the PKCE code verifier for the flow
	verifier CodeVerifier

	// redirectTarget is where to return the user inside the app after a
	// successful login
	redirectTarget string

	// redirectURL is the redirect_uri sent with the authorization request.
	// The token-endpoint exchange must repeat the exact same value.
	redirectURL string

	// expiration is the expiration time for the pending flow
	expiration time.Time
}

// NewPendingFlow creates a new PendingFlow with a fresh state token, nonce
// and PKCE verifier, expiring after expireIn.
// Supported options: WithRedirectTarget, WithRedirectURL, WithNow
func NewPendingFlow(expireIn time.Duration, opt ...Option) (*PendingFlow, error) {
	const op = "oauth2.NewPendingFlow"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getFlowOpts(opt...)
	state, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a flow's state: %w", op, err)
	}
	nonce, err := NewID(WithPrefix("n"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a flow's nonce: %w", op, err)
	}
	v, err := NewCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a flow's code verifier: %w", op, err)
	}
	return &PendingFlow{
		state:          state,
		nonce:          nonce,
		verifier:       v,
		redirectTarget: opts.withRedirectTarget,
		redirectURL:    opts.withRedirectURL,
		expiration:     opts.withNowFunc().Add(expireIn),
	}, nil
}

func (f *PendingFlow) State() string          { return f.state }
func (f *PendingFlow) Nonce() string          { return f.nonce }
func (f *PendingFlow) Verifier() CodeVerifier { return f.verifier }
func (f *PendingFlow) RedirectTarget() string { return f.redirectTarget }
func (f *PendingFlow) RedirectURL() string    { return f.redirectURL }
func (f *PendingFlow) Expiration() time.Time  { return f.expiration }

// IsExpired returns true if the pending flow has expired. Supported options:
// WithExpirySkew (default DefaultFlowExpirySkew), WithNow
func (f *PendingFlow) IsExpired(opt ...Option) bool {
	opts := getFlowOpts(opt...)
	return f.expiration.Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// pendingFlowJSON is the storage representation of a PendingFlow. The
// verifier round-trips as its verifier string; the challenge is recomputed.
type pendingFlowJSON struct {
	State          string    `json:"state"`
	Nonce          string    `json:"nonce"`
	CodeVerifier   string    `json:"code_verifier"`
	RedirectTarget string    `json:"redirect_target,omitempty"`
	RedirectURL    string    `json:"redirect_url,omitempty"`
	Expiration     time.Time `json:"expiration"`
}

// MarshalJSON implements json.Marshaler so a PendingFlow can be persisted
// via a storage adapter across a redirect-triggered page reload.
func (f *PendingFlow) MarshalJSON() ([]byte, error) {
	return json.Marshal(pendingFlowJSON{
		State:          f.state,
		Nonce:          f.nonce,
		CodeVerifier:   f.verifier.Verifier(),
		RedirectTarget: f.redirectTarget,
		RedirectURL:    f.redirectURL,
		Expiration:     f.expiration,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *PendingFlow) UnmarshalJSON(data []byte) error {
	const op = "PendingFlow.UnmarshalJSON"
	var raw pendingFlowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s: unable to unmarshal pending flow: %w", op, err)
	}
	v, err := RestoreCodeVerifier(raw.CodeVerifier)
	if err != nil {
		return fmt.Errorf("%s: unable to restore code verifier: %w", op, err)
	}
	f.state = raw.State
	f.nonce = raw.Nonce
	f.verifier = v
	f.redirectTarget = raw.RedirectTarget
	f.redirectURL = raw.RedirectURL
	f.expiration = raw.Expiration
	return nil
}

// flowOptions is the set of available options for PendingFlow functions
type flowOptions struct {
	withExpirySkew     time.Duration
	withNowFunc        func() time.Time
	withRedirectTarget string
	withRedirectURL    string
}

// flowDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func flowDefaults() flowOptions {
	return flowOptions{
		withExpirySkew: DefaultFlowExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getFlowOpts gets the defaults and applies the opt overrides passed in.
func getFlowOpts(opt ...Option) flowOptions {
	opts := flowDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithRedirectTarget provides an optional in-app location to return the user
// to after a successful login.
func WithRedirectTarget(target string) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withRedirectTarget = target
		}
	}
}

// WithRedirectURL provides an optional redirect_uri for: Config (the
// default for all flows), PendingFlow (an override for one flow).
func WithRedirectURL(url string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *flowOptions:
			v.withRedirectURL = url
		case *configOptions:
			v.withRedirectURL = url
		}
	}
}
