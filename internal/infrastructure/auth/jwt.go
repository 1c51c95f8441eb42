// Package auth signs and validates the HS256 principal tokens handed to clients.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/janhq/evaluator-server/internal/domain/user"
)

const issuer = "evaluator-server"

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the JWT payload of a principal token.
type Claims struct {
	IsGuest bool   `json:"isGuest"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates principal tokens with a shared secret.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

var _ user.TokenIssuer = (*TokenManager)(nil)

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

// Issue implements user.TokenIssuer.
func (m *TokenManager) Issue(p user.Principal, ttl time.Duration) (string, error) {
	if p.UserID == "" {
		return "", fmt.Errorf("principal has no user id")
	}
	now := m.now()
	claims := Claims{
		IsGuest: p.IsGuest,
		Role:    p.Role,
		Name:    p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse validates a token and returns its principal.
func (m *TokenManager) Parse(tokenString string) (user.Principal, error) {
	if strings.TrimSpace(tokenString) == "" {
		return user.Principal{}, ErrMissingToken
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return user.Principal{}, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return user.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = user.RoleUser
		if claims.IsGuest {
			role = user.RoleGuest
		}
	}
	return user.Principal{UserID: claims.Subject, IsGuest: claims.IsGuest, Role: role, Name: claims.Name}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
