package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per client in a fixed window stored in redis,
// so every gateway replica shares the same budget.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// Quota is the outcome of one counted request.
type Quota struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Returns {count, remaining window in ms}.
var windowCounter = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	rl := &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: strings.TrimSpace(prefix)}
	if rl.limit <= 0 {
		rl.limit = 60
	}
	if rl.window <= 0 {
		rl.window = time.Minute
	}
	if rl.prefix == "" {
		rl.prefix = "rl"
	}
	return rl
}

func (rl *RedisRateLimiter) key(client string) string { return rl.prefix + ":" + client }

// Take counts one request for client and reports what is left of its window.
func (rl *RedisRateLimiter) Take(ctx context.Context, client string) (Quota, error) {
	vals, err := windowCounter.Run(ctx, rl.rdb, []string{rl.key(client)}, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Quota{}, err
	}
	q := Quota{ResetIn: rl.window}
	count := int64(rl.limit) + 1
	if len(vals) > 0 {
		count = vals[0]
	}
	if len(vals) > 1 && vals[1] > 0 {
		q.ResetIn = time.Duration(vals[1]) * time.Millisecond
	}
	q.Allowed = count <= int64(rl.limit)
	if q.Allowed {
		q.Remaining = rl.limit - int(count)
	}
	return q, nil
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	q, err := rl.Take(ctx, client)
	return q.Allowed, err
}

// Middleware lets traffic through on redis errors when failOpen is set and
// answers 503 otherwise.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q, err := rl.Take(r.Context(), clientKey(r))
			switch {
			case err != nil && failOpen:
				if logger != nil {
					logger.Warn("rate limiter unavailable, failing open", "err", err)
				}
				next.ServeHTTP(w, r)
			case err != nil:
				if logger != nil {
					logger.Error("rate limiter unavailable", "err", err)
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
			case !q.Allowed:
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(q.ResetIn)))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			default:
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
				next.ServeHTTP(w, r)
			}
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
