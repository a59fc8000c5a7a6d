package jwtauth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/authx/services/scopes"
	"github.com/tech-arch1tect/authx/services/tokens"
)

const (
	SubjectIDKey = "_auth_subject_id"
	ClaimsKey    = "_auth_claims"
)

// RequireAuth validates the bearer access token and stashes its claims in the
// request context. Expired, malformed and tampered tokens map to distinct 401
// messages so clients can tell re-auth from rejection.
func RequireAuth(codec *tokens.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access token required")
			}

			claims, err := codec.Parse(tokenString)
			if err != nil {
				switch err {
				case tokens.ErrExpiredToken:
					return echo.NewHTTPError(http.StatusUnauthorized, "Access token has expired")
				case tokens.ErrMalformedToken:
					return echo.NewHTTPError(http.StatusUnauthorized, "Malformed access token")
				case tokens.ErrInvalidSignature:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token signature")
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token")
				}
			}

			c.Set(SubjectIDKey, claims.SubjectID)
			c.Set(ClaimsKey, claims)

			return next(c)
		}
	}
}

// RequireScopes enforces that the already-validated token carries every listed
// scope. Must run after RequireAuth.
func RequireScopes(authorizer *scopes.Authorizer, required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := GetClaims(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access token required")
			}

			if err := authorizer.Authorize(claims.Scopes, required...); err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "Not enough permissions: "+err.Error())
			}

			return next(c)
		}
	}
}

func GetSubjectID(c echo.Context) uint {
	if subjectID, ok := c.Get(SubjectIDKey).(uint); ok {
		return subjectID
	}
	return 0
}

func GetClaims(c echo.Context) *tokens.Claims {
	if claims, ok := c.Get(ClaimsKey).(*tokens.Claims); ok {
		return claims
	}
	return nil
}
