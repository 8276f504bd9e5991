// Package rate implementa rate limiting fixed-window con drivers redis y
// memoria, usado por los endpoints de token y login.
package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es el resultado de una consulta al limiter.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter decide si una key puede ejecutar otro request en la ventana actual.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE).
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

// NewRedisLimiter crea un limiter respaldado por redis.
func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
	}

	hits := incr.Val()
	if hits > l.Max {
		retry := winStart.Add(l.Window).Sub(now)
		return Result{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}
	return Result{Allowed: true, Remaining: l.Max - hits}, nil
}

// MemoryLimiter: fixed window en memoria para despliegues sin redis.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	start time.Time
	hits  int64
}

// NewMemoryLimiter crea un limiter en memoria.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{Max: int64(max), Window: window, windows: make(map[string]*memWindow)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !w.start.Equal(winStart) {
		w = &memWindow{start: winStart}
		l.windows[key] = w
	}
	w.hits++
	if w.hits > l.Max {
		return Result{Allowed: false, RetryAfter: winStart.Add(l.Window).Sub(now)}, nil
	}
	return Result{Allowed: true, Remaining: l.Max - w.hits}, nil
}
