// Package cache define la interfaz de cache usada para authorization codes
// y sesiones, con drivers memory (go-cache) y redis.
package cache

import "time"

// Cache es un KV con TTL. Los valores son bytes (JSON serializado).
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
