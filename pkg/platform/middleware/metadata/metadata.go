package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"aidtrace/pkg/requestcontext"
)

// ClientMetadata extracts client IP address, User-Agent and a short device
// summary from the request and adds them to the context. Scan entries record
// the device so auditors can tell handheld scanners from desktop sessions.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClient(r.Context(), requestcontext.Client{
			IP:        ClientIPFromRequest(r),
			UserAgent: ua,
			Device:    DeviceSummary(ua),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceSummary renders a User-Agent as "<os> / <browser>", with a "mobile"
// or "bot" marker when the agent says so. Unknown agents yield "".
func DeviceSummary(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	var parts []string
	if osName := ua.OS(); osName != "" {
		parts = append(parts, osName)
	}
	if name, version := ua.Browser(); name != "" {
		if version != "" {
			name += " " + version
		}
		parts = append(parts, name)
	}
	summary := strings.Join(parts, " / ")
	switch {
	case ua.Bot():
		summary += " (bot)"
	case ua.Mobile():
		summary += " (mobile)"
	}
	return strings.TrimSpace(summary)
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	// Take the first IP which is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" or "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
