package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
)

// NewRateLimiter returns a per-client-IP limiter allowing requests per
// window. A requests value <= 0 disables limiting. Rejected requests get 429
// with the standard JSON error body.
func NewRateLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		}),
	)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSONError writes the API's error shape from inside middleware, where
// the handler package's helpers are not available.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}
