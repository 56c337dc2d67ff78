// Package ratelimit wraps go-chi/httprate with this API's error envelope.
//
// Different route groups get different budgets: the auth endpoints are
// throttled hard because each request burns a bcrypt comparison or an
// email, while read-heavy endpoints get room to breathe. The limits are
// per client IP (httprate.KeyByIP), which relies on chi's RealIP
// middleware running first so proxied requests aren't all counted against
// the proxy's address.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// Middleware returns a per-IP rate limiting middleware allowing max
// requests per window. When the budget is exhausted the client gets a 429
// in the API's standard error format, with a Retry-After header already
// set by httprate.
func Middleware(max int, window time.Duration, message string) func(http.Handler) http.Handler {
	return httprate.Limit(
		max,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": message,
			})
		}),
	)
}
