package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/httputil"
	"github.com/asakaida/relcalc/internal/infrastructure/auth"
)

const subjectKey contextKey = "subject"

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Subject returns the authenticated token subject stored in ctx
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// WithSubject stores the token subject in ctx
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireAuth rejects requests without a valid bearer token with 401
func RequireAuth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httputil.WriteError(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "Missing or malformed Authorization header")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("token validation failed",
					zap.String("request_id", RequestID(r.Context())),
					zap.Error(err),
				)
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				httputil.WriteError(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Subject)))
		})
	}
}

// OptionalAuth records the subject of a valid bearer token and ignores
// missing or invalid ones
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := verifier.Verify(token); err == nil {
					r = r.WithContext(WithSubject(r.Context(), claims.Subject))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
