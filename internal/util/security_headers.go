package util

import (
	"net/http"
	"strings"
)

// PageCSP allows same-origin assets plus inline styles for server-rendered pages.
const PageCSP = "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self'; form-action 'self'; frame-ancestors 'none'; base-uri 'self'"

// WithSecurityHeaders adds security response headers using the given
// Content-Security-Policy; empty csp falls back to a deny-all API policy.
func WithSecurityHeaders(csp string, next http.Handler) http.Handler {
	if strings.TrimSpace(csp) == "" {
		csp = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")
		h.Set("Content-Security-Policy", csp)

		if r.TLS != nil || strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
