// Package memory implementa cache.Cache en proceso (go-cache), pensado para
// deployments de un solo nodo donde Redis sobra.
package memory

import (
	"time"

	"github.com/dropDatabas3/dearjane/internal/cache"
	gocache "github.com/patrickmn/go-cache"
)

const (
	fallbackTTL = 10 * time.Minute
	sweepEvery  = time.Minute
)

// KV guarda valores []byte con expiración. La limpieza de entradas vencidas
// corre en background cada sweepEvery.
type KV struct {
	inner *gocache.Cache
}

// New crea un cache en memoria. defaultTTL aplica a los Set sin TTL explícito.
func New(defaultTTL time.Duration) cache.Cache {
	if defaultTTL <= 0 {
		defaultTTL = fallbackTTL
	}
	return &KV{inner: gocache.New(defaultTTL, sweepEvery)}
}

func (kv *KV) Get(key string) ([]byte, bool) {
	raw, hit := kv.inner.Get(key)
	if !hit {
		return nil, false
	}
	val, ok := raw.([]byte)
	if !ok {
		return nil, false
	}
	return val, true
}

func (kv *KV) Set(key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	kv.inner.Set(key, val, ttl)
}

func (kv *KV) Delete(key string) { kv.inner.Delete(key) }
