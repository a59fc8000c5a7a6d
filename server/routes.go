package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authx/middleware/jwtauth"
	"github.com/tech-arch1tect/authx/services/rotation"
	"github.com/tech-arch1tect/authx/services/scopes"
	"github.com/tech-arch1tect/authx/services/tokens"
	"gorm.io/gorm"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// RegisterAuthRoutes wires the token lifecycle endpoints. This is the boundary
// layer: it translates the engine's error taxonomy into status codes and never
// adds behavior of its own.
func RegisterAuthRoutes(srv *Server, engine *rotation.Engine, codec *tokens.Service, authorizer *scopes.Authorizer, db *gorm.DB) {
	g := srv.Group("/auth")

	g.POST("/token", func(c echo.Context) error {
		var req loginRequest
		if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "username and password required")
		}

		pair, err := engine.IssuePair(req.Username, req.Password, c.RealIP())
		if err != nil {
			if errors.Is(err, rotation.ErrInvalidCredentials) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue tokens")
		}

		return c.JSON(http.StatusOK, pair)
	})

	g.POST("/refresh", func(c echo.Context) error {
		var req refreshRequest
		if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "refresh_token required")
		}

		pair, err := engine.Refresh(req.RefreshToken, c.RealIP())
		if err != nil {
			switch {
			case errors.Is(err, rotation.ErrUnknownToken):
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
			case errors.Is(err, rotation.ErrTokenExpired):
				return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token expired")
			case errors.Is(err, rotation.ErrTokenReuseDetected):
				return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token no longer valid")
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to refresh tokens")
			}
		}

		return c.JSON(http.StatusOK, pair)
	})

	g.POST("/revoke", func(c echo.Context) error {
		var req refreshRequest
		if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "refresh_token required")
		}

		if err := engine.Revoke(req.RefreshToken); err != nil {
			if errors.Is(err, rotation.ErrUnknownToken) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke token")
		}

		return c.NoContent(http.StatusNoContent)
	})

	g.POST("/logout-all", func(c echo.Context) error {
		subjectID := jwtauth.GetSubjectID(c)
		count, err := engine.RevokeAll(subjectID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke tokens")
		}

		return c.JSON(http.StatusOK, map[string]any{"revoked": count})
	}, jwtauth.RequireAuth(codec))

	g.GET("/me", func(c echo.Context) error {
		claims := jwtauth.GetClaims(c)
		return c.JSON(http.StatusOK, map[string]any{
			"subject_id": claims.SubjectID,
			"scopes":     claims.Scopes,
			"expires_at": claims.ExpiresAt,
		})
	}, jwtauth.RequireAuth(codec), jwtauth.RequireScopes(authorizer, scopes.ProfileRead))

	srv.Get("/health", func(c echo.Context) error {
		status := "ok"
		dbStatus := "ok"
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil {
				dbStatus = "error"
			} else if err := sqlDB.Ping(); err != nil {
				dbStatus = "error"
			}
		} else {
			dbStatus = "not configured"
		}
		if dbStatus == "error" {
			status = "degraded"
		}

		return c.JSON(http.StatusOK, map[string]string{
			"status":   status,
			"database": dbStatus,
		})
	})
}
