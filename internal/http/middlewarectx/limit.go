package middlewarectx

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/thomas-api/internal/http/response"
)

// RateLimitMiddleware ограничивает частоту запросов общим token bucket.
func RateLimitMiddleware(log *slog.Logger, rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				response.WriteError(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
