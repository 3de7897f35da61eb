package cache

import "time"

// Cache is the interface for short-lived lookup data: outcome token ids
// keyed by market, embedding vectors keyed by title, spot prices keyed by
// symbol.
type Cache interface {
	// Get retrieves a value. Returns (value, true) if found.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Clear removes all values.
	Clear()

	// Close releases cache resources.
	Close()
}
