package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithName sets the driver label used in metrics.
func WithName(name string) Option {
	return func(s *MemoryStore) {
		if name != "" {
			s.name = name
		}
	}
}
