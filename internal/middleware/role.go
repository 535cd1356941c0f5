package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RoleLookup resolves the stored role of a principal.
type RoleLookup func(ctx context.Context, email string) (string, error)

// RequireRole enforces that the authenticated principal currently holds one
// of roles.  The role is read from the user store on every request rather
// than from the token, so a demotion takes effect immediately.  It must be
// mounted after JWTAuth.
func RequireRole(lookup RoleLookup, roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			email := Principal(c)
			if email == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized access"})
			}
			role, err := lookup(c.Request().Context(), email)
			if err != nil {
				// An unknown principal has no role at all.
				zap.L().Debug("role lookup failed", zap.String("email", email), zap.Error(err))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden access"})
			}
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden access"})
			}
			c.Set("role", role)
			return next(c)
		}
	}
}
