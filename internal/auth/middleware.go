package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/models"
)

const (
	// ContextKeyClaims is the key for storing JWT claims in context
	ContextKeyClaims = "claims"
	// HeaderAPIKey carries an API key instead of a bearer token
	HeaderAPIKey = "X-API-Key"
)

// Middleware is the authentication middleware
type Middleware struct {
	jwtService *JWTService
	config     *config.Config
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtService: NewJWTService(cfg),
		config:     cfg,
	}
}

// RequireAuth accepts a bearer JWT or an API key. API keys act with the
// writer role.
func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.config.Security.AuthEnabled {
			return next(c)
		}

		if key := c.Request().Header.Get(HeaderAPIKey); key != "" {
			if err := VerifyAPIKey(key, m.config.Security.APIKeyHashes); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			claims := &Claims{Roles: []models.Role{models.RoleWriter}}
			claims.Subject = "api-key"
			c.Set(ContextKeyClaims, claims)
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(ContextKeyClaims, claims)
		return next(c)
	}
}

// RequireRole is middleware that requires a role granting want
func (m *Middleware) RequireRole(want models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.config.Security.AuthEnabled {
				return next(c)
			}
			claims, ok := GetClaims(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !claims.HasRole(want) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireAdmin is middleware that requires admin role
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireAuth(m.RequireRole(models.RoleAdmin)(next))
}

// RequireWrite is middleware that requires the writer or admin role
func (m *Middleware) RequireWrite(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireAuth(m.RequireRole(models.RoleWriter)(next))
}

// RequireRead is middleware that requires any authenticated caller
func (m *Middleware) RequireRead(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireAuth(m.RequireRole(models.RoleReader)(next))
}

// GetClaims extracts JWT claims from Echo context
func GetClaims(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ContextKeyClaims).(*Claims)
	return claims, ok
}

// Subject returns the authenticated caller, or "anonymous".
func Subject(c echo.Context) string {
	if claims, ok := GetClaims(c); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "anonymous"
}
