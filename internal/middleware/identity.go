package middleware

import "github.com/labstack/echo/v4"

// Principal returns the authenticated email stored by JWTAuth, or "" on a
// public route.
func Principal(c echo.Context) string {
	if s, ok := c.Get(PrincipalKey).(string); ok {
		return s
	}
	return ""
}

