package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/styledecor/internal/service"
)

// reconcileTimeout bounds a full reconciliation pass, which walks every
// booking.
const reconcileTimeout = 60 * time.Second

// AdminHandler serves maintenance endpoints.
type AdminHandler struct {
	Reconciler *service.Reconciler
}

func NewAdminHandler(r *service.Reconciler) *AdminHandler {
	return &AdminHandler{Reconciler: r}
}

// Reconcile handles POST /v1/admin/reconcile.
func (h *AdminHandler) Reconcile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), reconcileTimeout)
	defer cancel()
	report, err := h.Reconciler.Run(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
