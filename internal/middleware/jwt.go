package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/styledecor/internal/utils"
)

// PrincipalKey is the context key under which JWTAuth stores the caller's
// lower-cased email.
const PrincipalKey = "email"

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the principal email in the request context.  A missing or
// non-Bearer header is 401; a token that fails verification is 403.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized access"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized access"})
			}

			email, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden access"})
			}
			c.Set(PrincipalKey, email)
			return next(c)
		}
	}
}
