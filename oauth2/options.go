package oauth2

import "time"

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		o(opts)
	}
}

// WithExpirySkew provides an optional expiry skew duration for: Token,
// PendingFlow
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenOptions:
			v.withExpirySkew = d
		case *flowOptions:
			v.withExpirySkew = d
		}
	}
}

// WithPrefix provides an optional prefix for a new ID
func WithPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*idOptions); ok {
			o.withPrefix = prefix
		}
	}
}

// WithNow provides an optional "now" function, overriding time.Now. Used by
// tests to pin the clock.
func WithNow(nowFn func() time.Time) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenOptions:
			if nowFn != nil {
				v.withNowFunc = nowFn
			}
		case *flowOptions:
			if nowFn != nil {
				v.withNowFunc = nowFn
			}
		case *clientOptions:
			if nowFn != nil {
				v.withNowFunc = nowFn
			}
		}
	}
}
