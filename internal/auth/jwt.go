// Package auth provides authentication and authorization for the Mycelium API.
// It implements JWT bearer tokens and bcrypt-hashed API keys with role-based
// access control.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/models"
)

const issuer = "mycelium"

var (
	// ErrInvalidToken is returned when a JWT token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a JWT token has expired
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidAPIKey is returned when no configured hash matches a key
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// Claims represents JWT custom claims
type Claims struct {
	Roles []models.Role `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether any of the claimed roles grants want.
func (c *Claims) HasRole(want models.Role) bool {
	for _, r := range c.Roles {
		if r.Grants(want) {
			return true
		}
	}
	return false
}

// JWTService signs and validates access tokens
type JWTService struct {
	secret     []byte
	expiration time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg *config.Config) *JWTService {
	expiration := cfg.Security.JWTExpiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &JWTService{
		secret:     []byte(cfg.Security.JWTSecret),
		expiration: expiration,
	}
}

// GenerateToken signs a token for subject carrying roles.
func (s *JWTService) GenerateToken(subject string, roles ...models.Role) (string, error) {
	return s.GenerateTokenWithExpiry(subject, s.expiration, roles...)
}

// GenerateTokenWithExpiry is GenerateToken with an explicit lifetime.
func (s *JWTService) GenerateTokenWithExpiry(subject string, expiration time.Duration, roles ...models.Role) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if len(roles) == 0 {
		return "", fmt.Errorf("at least one role is required")
	}
	for _, r := range roles {
		if !r.Valid() {
			return "", fmt.Errorf("unknown role %q", r)
		}
	}

	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateAPIKey generates a random API key
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return "myc_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey hashes an API key for the api_key_hashes setting
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// CompareAPIKey compares an API key with its hash
func CompareAPIKey(key, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}

// VerifyAPIKey checks key against every configured hash.
func VerifyAPIKey(key string, hashes []string) error {
	if key == "" {
		return ErrInvalidAPIKey
	}
	for _, h := range hashes {
		if CompareAPIKey(key, h) == nil {
			return nil
		}
	}
	return ErrInvalidAPIKey
}
