package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/pkg/utils"
)

// RateLimiter is a fixed-window per-client limiter backed by Redis counters.
// A Redis failure fails open: matching availability outranks limiting.
type RateLimiter struct {
	redis    *redis.Client
	requests int
	window   time.Duration
}

func NewRateLimiter(redisClient *redis.Client, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, requests: requests, window: window}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			clientIP = forwarded
		}
		key := fmt.Sprintf("ratelimit:%s:%s", clientIP, r.URL.Path)

		count, err := rl.hit(r.Context(), key)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requests - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requests))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > rl.requests {
			utils.Error(w, apperrors.NewAPIError("rate_limit_exceeded",
				"too many requests, please try again later", http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) hit(ctx context.Context, key string) (int, error) {
	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}
