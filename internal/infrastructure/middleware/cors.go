package middleware

import (
	"net/http"
	"strings"
)

// CORS handles Cross-Origin Resource Sharing for the configured origins.
// Credentials are allowed, so the origin is echoed back instead of "*".
type CORS struct {
	allowedOrigins map[string]bool
	allowAll       bool
}

// NewCORS creates a new CORS middleware
func NewCORS(origins []string) *CORS {
	c := &CORS{allowedOrigins: make(map[string]bool, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			c.allowAll = true
			continue
		}
		c.allowedOrigins[origin] = true
	}
	return c
}

// Handler returns the CORS middleware handler
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Add("Vary", "Origin")
		}
		allowed := origin != "" && (c.allowAll || c.allowedOrigins[origin])

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
					w.Header().Set("Access-Control-Allow-Headers", headers)
				} else {
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
				}
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
