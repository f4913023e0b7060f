package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/models"
)

func testConfig(enabled bool, hashes ...string) *config.Config {
	cfg := config.Default()
	cfg.Security.AuthEnabled = enabled
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.JWTExpiration = time.Hour
	cfg.Security.APIKeyHashes = hashes
	return cfg
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewJWTService(testConfig(true))
	token, err := svc.GenerateToken("alice", models.RoleWriter)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, claims.HasRole(models.RoleReader))
	assert.True(t, claims.HasRole(models.RoleWriter))
	assert.False(t, claims.HasRole(models.RoleAdmin))
}

func TestTokenErrors(t *testing.T) {
	svc := NewJWTService(testConfig(true))

	_, err := svc.GenerateToken("", models.RoleAdmin)
	assert.Error(t, err)
	_, err = svc.GenerateToken("alice")
	assert.Error(t, err)
	_, err = svc.GenerateToken("alice", "owner")
	assert.Error(t, err)

	expired, err := svc.GenerateTokenWithExpiry("alice", -time.Minute, models.RoleReader)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other := NewJWTService(&config.Config{Security: config.SecurityConfig{JWTSecret: "other"}})
	foreign, err := other.GenerateToken("mallory", models.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAPIKeys(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.Contains(t, key, "myc_")

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, VerifyAPIKey(key, []string{"$2a$04$invalid", string(hash)}))
	assert.ErrorIs(t, VerifyAPIKey("myc_wrong", []string{string(hash)}), ErrInvalidAPIKey)
	assert.ErrorIs(t, VerifyAPIKey("", []string{string(hash)}), ErrInvalidAPIKey)
}

func serve(t *testing.T, wrap func(echo.HandlerFunc) echo.HandlerFunc, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/", wrap(func(c echo.Context) error {
		return c.String(http.StatusOK, Subject(c))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("myc_key"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig(true, string(hash))
	m := NewMiddleware(cfg)
	svc := NewJWTService(cfg)
	reader, err := svc.GenerateToken("rita", models.RoleReader)
	require.NoError(t, err)
	admin, err := svc.GenerateToken("ada", models.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		wrap   func(echo.HandlerFunc) echo.HandlerFunc
		header string
		value  string
		status int
		body   string
	}{
		{"no credentials", m.RequireRead, "", "", http.StatusUnauthorized, ""},
		{"bad scheme", m.RequireRead, "Authorization", "Basic abc", http.StatusUnauthorized, ""},
		{"bad token", m.RequireRead, "Authorization", "Bearer nope", http.StatusUnauthorized, ""},
		{"reader reads", m.RequireRead, "Authorization", "Bearer " + reader, http.StatusOK, "rita"},
		{"reader cannot write", m.RequireWrite, "Authorization", "Bearer " + reader, http.StatusForbidden, ""},
		{"admin writes", m.RequireWrite, "Authorization", "Bearer " + admin, http.StatusOK, "ada"},
		{"api key writes", m.RequireWrite, HeaderAPIKey, "myc_key", http.StatusOK, "api-key"},
		{"api key is not admin", m.RequireAdmin, HeaderAPIKey, "myc_key", http.StatusForbidden, ""},
		{"wrong api key", m.RequireRead, HeaderAPIKey, "myc_other", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.wrap, tt.header, tt.value)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	m := NewMiddleware(testConfig(false))
	rec := serve(t, m.RequireAdmin, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestRoleGrants(t *testing.T) {
	assert.True(t, models.RoleAdmin.Grants(models.RoleReader))
	assert.False(t, models.RoleReader.Grants(models.RoleWriter))
	assert.False(t, models.Role("owner").Grants(models.RoleReader))
}
