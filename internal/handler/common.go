package handler // handler defines the echo handlers of the HTTP surface

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/middleware"
	"github.com/iliyamo/styledecor/internal/service"
)

// requestTimeout bounds every store and gateway call made on behalf of a
// request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusOf maps an engine error kind onto an HTTP status code.
func statusOf(k service.Kind) int {
	switch k {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden, service.KindPermissionDenied:
		return http.StatusForbidden
	case service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindAlreadyExists, service.KindNoChange:
		return http.StatusConflict
	case service.KindFailedPrecondition:
		return http.StatusPreconditionFailed
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": msg}.  Internal errors are logged and
// reported with a generic message.  A partially applied two-step write also
// carries "partial": true.
func writeError(c echo.Context, err error) error {
	kind := service.KindOf(err)
	status := statusOf(kind)
	msg := service.Message(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("method", c.Request().Method),
			zap.String("path", c.Path()), zap.Error(err))
		msg = "internal server error"
	}
	body := echo.Map{"error": msg}
	if service.IsPartial(err) {
		body["partial"] = true
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// principal returns the verified caller email.
func principal(c echo.Context) string {
	return middleware.Principal(c)
}

// requireSelf rejects a request whose path or query email names another
// account.  An empty email defaults to the principal.
func requireSelf(c echo.Context, email string) (string, bool) {
	me := principal(c)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return me, me != ""
	}
	return email, email == me
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden access"})
}
