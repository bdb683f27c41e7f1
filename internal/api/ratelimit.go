package api

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DeleteRateLimiter is a token bucket shared by all callers of the routes it
// wraps. It holds at most burst tokens and regains one per refill interval.
type DeleteRateLimiter struct {
	limiter *rate.Limiter
	refill  time.Duration
	now     func() time.Time
}

// NewDeleteRateLimiter creates a full bucket.
func NewDeleteRateLimiter(burst int, refill time.Duration) *DeleteRateLimiter {
	return &DeleteRateLimiter{
		limiter: rate.NewLimiter(rate.Every(refill), burst),
		refill:  refill,
		now:     time.Now,
	}
}

// Allow takes a token if one is available.
func (l *DeleteRateLimiter) Allow() bool {
	return l.limiter.AllowN(l.now(), 1)
}

// Middleware rejects requests with 429 once the bucket is empty.
func (l *DeleteRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(l.refill/time.Second))))
			WriteProblem(w, r, http.StatusTooManyRequests, "Too many delete requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
