package middleware

import (
	"net/http"
)

const (
	defaultCSP = "default-src 'self'"
	// the docs page loads Swagger UI from the jsDelivr CDN
	docsCSP = "default-src 'self'; script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
		"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; img-src 'self' data:"
)

// SecurityHeaders sets the standard security headers on every response.
// Paths listed in relaxed get a CSP that allows the docs assets.
func SecurityHeaders(relaxed ...string) func(http.Handler) http.Handler {
	relaxedPaths := make(map[string]bool, len(relaxed))
	for _, p := range relaxed {
		relaxedPaths[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			if relaxedPaths[r.URL.Path] {
				h.Set("Content-Security-Policy", docsCSP)
			} else {
				h.Set("Content-Security-Policy", defaultCSP)
			}
			next.ServeHTTP(w, r)
		})
	}
}
