// Package requesttime pins one clock reading per request. A scan's anomaly
// checks, milestone timestamps and the events it emits all see that instant.
package requesttime

import (
	"net/http"
	"time"

	"aidtrace/pkg/requestcontext"
)

// Clock stamps each request with now() in UTC.
func Clock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Middleware is Clock(time.Now).
func Middleware(next http.Handler) http.Handler { return Clock(time.Now)(next) }
