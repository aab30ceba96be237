package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"quizbank/internal/app/apiresp"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type rateBucket struct {
	Count      int
	WindowEnds time.Time
}

// IPRateLimiter keeps its windows in process memory.
type IPRateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	store  map[string]rateBucket
	now    func() time.Time
}

func NewIPRateLimiter(max int, window time.Duration) *IPRateLimiter {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &IPRateLimiter{
		max:    max,
		window: window,
		store:  make(map[string]rateBucket),
		now:    time.Now,
	}
}

func (l *IPRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.store[key]
	if now.After(b.WindowEnds) {
		b = rateBucket{Count: 0, WindowEnds: now.Add(l.window)}
	}
	if b.Count >= l.max {
		l.store[key] = b
		return false, nil
	}
	b.Count++
	l.store[key] = b
	return true, nil
}

// RedisRateLimiter shares windows across instances. The first hit in a
// window sets the key's expiry.
type RedisRateLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	prefix string
}

func NewRedisRateLimiter(client *redis.Client, max int, window time.Duration) *RedisRateLimiter {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{client: client, max: max, window: window, prefix: "quizbank:ratelimit:"}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate key: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire rate key: %w", err)
		}
	}
	return n <= int64(l.max), nil
}

// RateLimitMiddleware rejects callers over the limit with 429. A limiter
// error lets the request through.
func RateLimitMiddleware(l RateLimiter, log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := strings.TrimSpace(r.RemoteAddr)
			key := ip + "|" + r.Method + "|" + r.URL.Path
			ok, err := l.Allow(r.Context(), key)
			if err != nil {
				log.WithError(err).Warn("rate limiter unavailable")
				ok = true
			}
			if !ok {
				apiresp.WriteError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
