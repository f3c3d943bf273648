package cache

import "errors"

// Sentinel errors for progress caches.
var (
	// ErrCacheMiss is returned when no entry exists for the player.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis cannot be reached at startup.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when an entry cannot be encoded or decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")
)
