package dedupe

// Option applies a configuration option to the Guard.
type Option func(*Guard)

// WithClaims shares a claims set between guards.
func WithClaims(c *Claims) Option {
	return func(g *Guard) {
		if c != nil {
			g.claims = c
		}
	}
}

// WithoutClaims disables the in-process gate; only the lookup and the
// store's unique index remain.
func WithoutClaims() Option {
	return func(g *Guard) {
		g.claims = nil
	}
}
