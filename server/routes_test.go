package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/services/auth"
	"github.com/tech-arch1tect/authx/services/refreshtoken"
	"github.com/tech-arch1tect/authx/services/rotation"
	"github.com/tech-arch1tect/authx/services/scopes"
	"github.com/tech-arch1tect/authx/services/tokens"
	"github.com/tech-arch1tect/authx/testutils"
)

func getTestServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: "0"},
		JWT: config.JWTConfig{
			SecretKey:    "server-test-secret",
			Issuer:       "authx-test",
			AccessExpiry: 30 * time.Minute,
		},
		RefreshToken: config.RefreshTokenConfig{
			Expiry:      168 * time.Hour,
			TokenLength: 32,
		},
		Auth: config.AuthConfig{
			BcryptCost:    4,
			MinLength:     8,
			RequireUpper:  true,
			RequireLower:  true,
			RequireNumber: true,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	cfg := getTestServerConfig()
	db := testutils.SetupTestDB(t, &auth.User{}, &refreshtoken.RefreshToken{})
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	verifier := auth.NewService(cfg, db, clk, nil)
	codec := tokens.NewService(cfg, clk, nil)
	authorizer := scopes.NewAuthorizer(nil, nil)
	store := refreshtoken.NewStore(db, cfg, clk, nil)
	engine := rotation.NewEngine(verifier, codec, authorizer, store, clk, nil)

	require.NoError(t, db.Create(&auth.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: verifier.MustHashPassword("Password1"),
		Role:         scopes.RoleUser,
		Active:       true,
	}).Error)

	srv := New(cfg, nil)
	RegisterAuthRoutes(srv, engine, codec, authorizer, db)
	return srv
}

func postJSON(srv *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func decodePair(t *testing.T, rec *httptest.ResponseRecorder) rotation.TokenPair {
	t.Helper()
	var pair rotation.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestAuthRoutes_Login(t *testing.T) {
	srv := newTestServer(t)

	t.Run("valid credentials", func(t *testing.T) {
		rec := postJSON(srv, "/auth/token", `{"username":"alice","password":"Password1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		pair := decodePair(t, rec)
		assert.Equal(t, "bearer", pair.TokenType)
		assert.Equal(t, 1800, pair.ExpiresIn)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := postJSON(srv, "/auth/token", `{"username":"alice","password":"nope-Nope1"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := postJSON(srv, "/auth/token", `{"username":"alice"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthRoutes_RefreshAndRevoke(t *testing.T) {
	srv := newTestServer(t)

	login := postJSON(srv, "/auth/token", `{"username":"alice","password":"Password1"}`)
	require.Equal(t, http.StatusOK, login.Code)
	pair := decodePair(t, login)

	t.Run("refresh rotates", func(t *testing.T) {
		rec := postJSON(srv, "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		rotated := decodePair(t, rec)
		assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

		t.Run("old token now rejected", func(t *testing.T) {
			rec := postJSON(srv, "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})

		t.Run("revoke is 204 and terminal", func(t *testing.T) {
			rec := postJSON(srv, "/auth/revoke", `{"refresh_token":"`+rotated.RefreshToken+`"}`)
			assert.Equal(t, http.StatusNoContent, rec.Code)

			rec = postJSON(srv, "/auth/refresh", `{"refresh_token":"`+rotated.RefreshToken+`"}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		rec := postJSON(srv, "/auth/refresh", `{"refresh_token":"never-issued"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthRoutes_Me(t *testing.T) {
	srv := newTestServer(t)

	login := postJSON(srv, "/auth/token", `{"username":"alice","password":"Password1"}`)
	require.Equal(t, http.StatusOK, login.Code)
	pair := decodePair(t, login)

	t.Run("with access token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "profile:read")
	})

	t.Run("without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthRoutes_LogoutAll(t *testing.T) {
	srv := newTestServer(t)

	first := decodePair(t, postJSON(srv, "/auth/token", `{"username":"alice","password":"Password1"}`))
	second := decodePair(t, postJSON(srv, "/auth/token", `{"username":"alice","password":"Password1"}`))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)
	req.Header.Set("Authorization", "Bearer "+first.AccessToken)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"revoked":2`)

	for _, raw := range []string{first.RefreshToken, second.RefreshToken} {
		rec := postJSON(srv, "/auth/refresh", `{"refresh_token":"`+raw+`"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestHealthRoute(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
