// Package ratelimit throttles ledger writes per caller identity.
package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/platform/httputil"
	auth "aidtrace/pkg/platform/middleware/auth"
	"aidtrace/pkg/requestcontext"
)

// Writes limits state-changing requests (everything except GET and HEAD)
// per authenticated caller. It must run after auth.RequireCaller.
func Writes(limiter *Window, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			caller := auth.GetCaller(ctx)

			result := limiter.Allow(caller.String())
			addHeaders(w, result)
			if !result.Allowed {
				logger.WarnContext(ctx, "write rate limit exceeded",
					"caller", caller,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(limiter.now())))
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeRateLimited,
					"more than %d writes in the current window", result.Limit))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
