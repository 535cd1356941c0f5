package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/service"
)

// DecoratorHandler serves the public roster, the application form, the
// decorator's own workspace and the admin review endpoints.
type DecoratorHandler struct {
	Roster   *service.RosterEngine
	Bookings *service.BookingEngine
}

func NewDecoratorHandler(r *service.RosterEngine, b *service.BookingEngine) *DecoratorHandler {
	return &DecoratorHandler{Roster: r, Bookings: b}
}

// ListRoster handles GET /v1/decorators?city=&specialization=&applicationStatus=.
func (h *DecoratorHandler) ListRoster(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Roster.ListRoster(ctx, service.RosterFilter{
		City:              strings.TrimSpace(c.QueryParam("city")),
		Specialization:    strings.TrimSpace(c.QueryParam("specialization")),
		ApplicationStatus: strings.TrimSpace(c.QueryParam("applicationStatus")),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/decorators/:id.
func (h *DecoratorHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Roster.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

type applyReq struct {
	DecoratorEmail  string                `json:"decoratorEmail"`
	Name            string                `json:"name"`
	Phone           string                `json:"phone"`
	PhotoURL        string                `json:"photoURL"`
	Bio             string                `json:"bio"`
	ServiceLocation model.ServiceLocation `json:"serviceLocation"`
	Specialization  string                `json:"specialization"`
	ExperienceYears int                   `json:"experienceYears"`
}

// Apply handles POST /v1/decorators/apply.  Applicants apply for
// themselves only.
func (h *DecoratorHandler) Apply(c echo.Context) error {
	var req applyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	email, ok := requireSelf(c, req.DecoratorEmail)
	if !ok {
		return forbidden(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Roster.Apply(ctx, service.ApplyInput{
		Email:           email,
		Name:            req.Name,
		Phone:           req.Phone,
		PhotoURL:        req.PhotoURL,
		Bio:             req.Bio,
		City:            req.ServiceLocation.City,
		Address:         req.ServiceLocation.Address,
		Specialization:  req.Specialization,
		ExperienceYears: req.ExperienceYears,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// self resolves the decorator record of the caller.
func (h *DecoratorHandler) self(c echo.Context) (*model.Decorator, error) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.Roster.GetByEmail(ctx, principal(c))
}

// Me handles GET /v1/decorator/me.
func (h *DecoratorHandler) Me(c echo.Context) error {
	d, err := h.self(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// MyBookings handles GET /v1/decorator/bookings.
func (h *DecoratorHandler) MyBookings(c echo.Context) error {
	d, err := h.self(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Bookings.ListForDecorator(ctx, d.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// AdvanceStatus handles PATCH /v1/decorator/bookings/:id/status.
func (h *DecoratorHandler) AdvanceStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	d, err := h.self(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.AdvanceStatus(ctx, c.Param("id"), d.ID, strings.TrimSpace(req.Status))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Reject handles PATCH /v1/decorator/bookings/:id/reject.
func (h *DecoratorHandler) Reject(c echo.Context) error {
	d, err := h.self(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.RejectAssignment(ctx, c.Param("id"), d.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type availabilityReq struct {
	IsAvailable json.RawMessage `json:"isAvailable"`
}

// flag returns nil unless raw is a JSON boolean.
func flag(raw json.RawMessage) *bool {
	switch strings.TrimSpace(string(raw)) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

// SetMyAvailability handles PATCH /v1/decorator/availability.
func (h *DecoratorHandler) SetMyAvailability(c echo.Context) error {
	var req availabilityReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	d, err := h.self(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.setAvailability(c, d.ID, flag(req.IsAvailable))
}

// SetAvailability handles PATCH /v1/admin/decorators/:id/availability.
func (h *DecoratorHandler) SetAvailability(c echo.Context) error {
	var req availabilityReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.setAvailability(c, c.Param("id"), flag(req.IsAvailable))
}

func (h *DecoratorHandler) setAvailability(c echo.Context, id string, available *bool) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Roster.SetAvailability(ctx, id, available)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// MyEarnings handles GET /v1/decorator/earnings.
func (h *DecoratorHandler) MyEarnings(c echo.Context) error {
	d, err := h.self(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.earnings(c, d.ID)
}

// Earnings handles GET /v1/admin/decorators/:id/earnings.
func (h *DecoratorHandler) Earnings(c echo.Context) error {
	return h.earnings(c, c.Param("id"))
}

func (h *DecoratorHandler) earnings(c echo.Context, id string) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Roster.EarningsFor(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Applications handles GET /v1/admin/decorators/applications?status=.
func (h *DecoratorHandler) Applications(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Roster.ListApplications(ctx, strings.TrimSpace(c.QueryParam("status")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type reviewReq struct {
	Action string `json:"action"`
}

// Review handles PATCH /v1/admin/decorators/:id/review.
func (h *DecoratorHandler) Review(c echo.Context) error {
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Roster.Review(ctx, c.Param("id"), strings.ToLower(strings.TrimSpace(req.Action)))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// MarkEarningPaid handles PATCH /v1/admin/earnings/:bookingId/payout.
func (h *DecoratorHandler) MarkEarningPaid(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Roster.MarkEarningPaid(ctx, c.Param("bookingId")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookingId": c.Param("bookingId"), "payoutStatus": model.PayoutPaid})
}
