package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"kycdesk/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request and adds
// them, plus a parsed device label, to the context. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua)
		ctx = requestcontext.WithDevice(ctx, DeviceLabel(ua))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceLabel summarizes a User-Agent as "<browser> <version> on <os>".
// Non-browser clients such as kycctl or curl report their product token.
func DeviceLabel(ua string) string {
	if ua == "" {
		return ""
	}
	parsed := useragent.New(ua)
	if parsed.Bot() {
		return "bot"
	}
	name, version := parsed.Browser()
	if name == "" {
		return ua
	}
	label := name
	if version != "" {
		label += " " + version
	}
	if os := parsed.OS(); os != "" {
		label += " on " + os
	}
	return label
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For may hold a chain; the first entry is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" (or "[::1]:port")
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
