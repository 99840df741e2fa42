package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail verification
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the claims carried by an access token
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC-signed access tokens
type TokenManager struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. Only the HMAC family
// (HS256, HS384, HS512) is accepted as algorithm.
func NewTokenManager(secret, algorithm string, expiry time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q: expected HS256, HS384 or HS512", algorithm)
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("token expiry must be positive")
	}
	return &TokenManager{
		secret: []byte(secret),
		method: method,
		expiry: expiry,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token for subject. A non-positive ttl uses the
// configured expiry.
func (m *TokenManager) Issue(subject, scope string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("subject is required")
	}
	if ttl <= 0 {
		ttl = m.expiry
	}

	now := m.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and returns its claims
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
