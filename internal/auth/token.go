package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope is a permission carried by a token.
type Scope string

// Scopes.
const (
	// ScopeCommand allows POST /api/v1/message.
	ScopeCommand Scope = "command"

	// ScopeRead allows history and the live notice stream.
	ScopeRead Scope = "read"
)

// DefaultTTL is used when Generate is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Claims are the JWT claims understood by the node.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []Scope `json:"scopes"`
}

// Allows reports whether the claims grant scope.
func (c *Claims) Allows(scope Scope) bool {
	return slices.Contains(c.Scopes, scope)
}

// Generate signs a token for subject.
//
// Parameters:
//   - subject: Who the token is for (an operator name or a client id)
//   - secret: HMAC secret from security.jwt.secret
//   - ttl: Lifetime; non-positive values use DefaultTTL
//   - scopes: Permissions granted
func Generate(subject, secret string, ttl time.Duration, scopes ...Scope) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scopes: scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates the signature, expiry and subject of tokenString.
func Parse(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// Authorize parses tokenString and checks it grants scope.
func Authorize(tokenString, secret string, scope Scope) (*Claims, error) {
	claims, err := Parse(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if !claims.Allows(scope) {
		return nil, fmt.Errorf("%w: %s", ErrScopeDenied, scope)
	}
	return claims, nil
}
