package server

import (
	"net"
	"net/http"

	"github.com/kwhite/recaptcha-classic/logger"
	"github.com/kwhite/recaptcha-classic/pkg/cache"
	"golang.org/x/time/rate"
)

func (s Server) LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With("method", r.Method, "path", r.URL.Path)
		ctx := logger.WithContext(r.Context(), log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimiter throttles requests per remote address. Each pending captcha
// fetch costs an upstream round trip, so the gateway keeps the bucket small.
type RateLimiter struct {
	visitors *cache.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		visitors: cache.New[string, *rate.Limiter](),
		rate:     r,
		burst:    b,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	limiter, exists := rl.visitors.Get(key)
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors.Set(key, limiter)
	}
	return limiter
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		limiter := rl.getLimiter(ip)
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
