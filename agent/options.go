package agent

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/webauth-go/webauth/oauth2"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		o(opts)
	}
}

// agentOptions is the set of available options for New
type agentOptions struct {
	withLogger     hclog.Logger
	withStorage    Storage
	withStorageKey string
	withClock      Clock
	withDoer       oauth2.Doer
	withFlowExpiry time.Duration
	withExpirySkew time.Duration
}

// agentDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func agentDefaults() agentOptions {
	return agentOptions{
		withLogger:     hclog.NewNullLogger(),
		withClock:      realClock{},
		withFlowExpiry: oauth2.DefaultPendingFlowExpiry,
		withExpirySkew: oauth2.DefaultTokenExpirySkew,
	}
}

// getAgentOpts gets the defaults and applies the opt overrides passed in.
func getAgentOpts(opt ...Option) agentOptions {
	opts := agentDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional hclog.Logger for the agent. The default
// is a null logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*agentOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithStorage provides the persistent store for pending flows. The default
// is an in-memory store, which only survives redirects when the process
// does; browser hosts should provide a sessionStorage-backed adapter.
func WithStorage(s Storage) Option {
	return func(o interface{}) {
		if o, ok := o.(*agentOptions); ok {
			o.withStorage = s
		}
	}
}

// WithStorageKey overrides the storage key used to persist the pending
// flow. The default is scoped to the configured client id.
func WithStorageKey(key string) Option {
	return func(o interface{}) {
		if o, ok := o.(*agentOptions); ok {
			o.withStorageKey = key
		}
	}
}

// WithClock provides an optional Clock, used by tests to drive refresh
// scheduling deterministically.
func WithClock(c Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*agentOptions); ok && c != nil {
			o.withClock = c
		}
	}
}

// WithDoer provides an optional HTTP adapter used to reach the token
// endpoint.
func WithDoer(d oauth2.Doer) Option {
	return func(o interface{}) {
		if o, ok := o.(*agentOptions); ok {
			o.withDoer = d
		}
	}
}

// WithFlowExpiry overrides how long a pending flow stays valid (default
// oauth2.DefaultPendingFlowExpiry).
func WithFlowExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*agentOptions); ok && d > 0 {
			o.withFlowExpiry = d
		}
	}
}

// WithExpirySkew overrides the skew window subtracted from the token expiry
// when deciding whether a refresh is due and when scheduling the deferred
// refresh (default oauth2.DefaultTokenExpirySkew).
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*agentOptions); ok && d >= 0 {
			o.withExpirySkew = d
		}
	}
}
