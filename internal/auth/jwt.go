// Package auth implements the bearer-JWT authentication surface spec.md
// §6 names: HS256 tokens carrying {sub, username, role, iat, exp}, a user
// store, and the HTTP middleware that gates the API.
//
// Grounded on internal/auth/jwt.go (Go shape of JWTService/Claims) and
// internal/auth/context.go, adapted to ArtifactFlow's User shape
// (Username/Role rather than Email/Name) and bearer-only validation — see
// DESIGN.md for the dropped cookie/API-key/OAuth branches.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/artifactflow/server/pkg/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// JWTService issues and validates HS256 bearer tokens.
type JWTService struct {
	secret []byte
	expiry time.Duration
}

// NewJWTService builds a JWT helper. secret must be non-empty; callers are
// expected to have already enforced config.Load's fail-fast JWT_SECRET
// requirement (spec.md §6).
func NewJWTService(secret string, expiry time.Duration) *JWTService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &JWTService{secret: []byte(secret), expiry: expiry}
}

// Claims is the JWT payload spec.md §6 names verbatim: {sub, username,
// role, iat, exp}.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Generate issues a signed token for user, returning the token and its
// validity window.
func (s *JWTService) Generate(user *models.User) (token string, expiresIn time.Duration, err error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", 0, errors.New("user id required")
	}
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, s.expiry, nil
}

// Validate parses and verifies token, returning the claims it carries.
func (s *JWTService) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
