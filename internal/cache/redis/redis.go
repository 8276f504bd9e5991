package redis

import (
	"context"
	"time"

	"github.com/dropDatabas3/dearjane/internal/cache"
	rdb "github.com/redis/go-redis/v9"
)

type Redis struct {
	client *rdb.Client
	prefix string
}

// New crea un cache respaldado por redis. prefix se antepone a cada key.
func New(client *rdb.Client, prefix string) cache.Cache {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(k string) ([]byte, bool) {
	b, err := r.client.Get(context.Background(), r.prefix+k).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(k string, v []byte, ttl time.Duration) {
	_ = r.client.Set(context.Background(), r.prefix+k, v, ttl).Err()
}

func (r *Redis) Delete(k string) {
	_ = r.client.Del(context.Background(), r.prefix+k).Err()
}
