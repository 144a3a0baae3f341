package http

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"expenses/internal/cache"
	"expenses/internal/log"
)

// rateLimiter keeps one token bucket per client IP. Buckets of clients that
// stay idle for longer than the cache TTL are dropped by the cache manager.
type rateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *cache.LRUCache[*rate.Limiter]
}

func newRateLimiter(perSecond float64, burst int, maxClients int, idle time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: cache.NewLRUCache[*rate.Limiter](maxClients, idle),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	l := rl.clients.GetOrSet(ip, func() *rate.Limiter {
		return rate.NewLimiter(rl.limit, rl.burst)
	})
	// refresh the idle deadline
	rl.clients.Set(ip, l)
	return l.Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
			s.metrics.rateLimitHits.Add(1)
			log.FromContext(r.Context()).Warn("Rate limit exceeded", log.FieldClientIP, clientIP(r))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(s.limiter.limit)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(l rate.Limit) int {
	if l <= 0 {
		return 60
	}
	secs := int(1 / float64(l))
	if secs < 1 {
		return 1
	}
	return secs
}
