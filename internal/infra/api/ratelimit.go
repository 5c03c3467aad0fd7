package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"matrimony-subscription/internal/infra/logging"
	red "matrimony-subscription/internal/infra/redis"
)

// ContactLimiter throttles how often one user may call the contact endpoint. It guards
// the endpoint, not the quota; caps are enforced by the quota engine.
type ContactLimiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

type redisContactLimiter struct {
	rl     *red.RateLimiter
	limit  int
	window time.Duration
}

// NewRedisContactLimiter shares one fixed window per user across replicas.
func NewRedisContactLimiter(rl *red.RateLimiter, limit int, window time.Duration) ContactLimiter {
	return &redisContactLimiter{rl: rl, limit: limit, window: window}
}

func (l *redisContactLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.rl.Allow(ctx, red.UserActionKey(userID, "contact"), l.limit, l.window)
}

type localContactLimiter struct {
	limiters *cache.Cache
	every    rate.Limit
	burst    int
}

// NewLocalContactLimiter keeps a token bucket per user in process. A bucket expires
// after ten idle windows; every Allow pushes its expiry back.
func NewLocalContactLimiter(limit int, window time.Duration) ContactLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &localContactLimiter{
		limiters: cache.New(10*window, 10*window),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

func (l *localContactLimiter) Allow(_ context.Context, userID string) (bool, error) {
	v, ok := l.limiters.Get(userID)
	if !ok {
		nl := rate.NewLimiter(l.every, l.burst)
		// Add fails when a concurrent request created the bucket first.
		if err := l.limiters.Add(userID, nl, cache.DefaultExpiration); err != nil {
			v, _ = l.limiters.Get(userID)
		} else {
			v = nl
		}
	}
	lim, ok := v.(*rate.Limiter)
	if !ok {
		return true, nil
	}
	l.limiters.SetDefault(userID, lim)
	return lim.Allow(), nil
}

// RateLimit rejects callers over their allowance with 429. Limiter failures fail open.
func RateLimit(limiter ContactLimiter, window time.Duration, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if limiter == nil || p == nil {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := limiter.Allow(r.Context(), p.UserID)
			if err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
