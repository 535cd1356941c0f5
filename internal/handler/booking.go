package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/service"
)

// BookingHandler serves the client and admin booking endpoints.
type BookingHandler struct {
	Bookings *service.BookingEngine
	Users    *service.UserEngine
}

func NewBookingHandler(b *service.BookingEngine, u *service.UserEngine) *BookingHandler {
	return &BookingHandler{Bookings: b, Users: u}
}

// createBookingReq accepts quantity as a JSON number or string so that
// "2.5" and 2.5 are treated alike and "abc" reaches validation.
type createBookingReq struct {
	BookedByEmail string          `json:"bookedByEmail"`
	CustomerName  string          `json:"customerName"`
	ServiceID     string          `json:"serviceId"`
	BookingType   string          `json:"bookingType"`
	Quantity      json.RawMessage `json:"quantity"`
	EventDate     string          `json:"eventDate"`
	Location      string          `json:"location"`
	Notes         string          `json:"notes"`
}

func rawQuantity(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

func parseEventDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// Create handles POST /v1/bookings.  The booking is always recorded against
// the caller; a body email naming someone else is rejected.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	email, ok := requireSelf(c, req.BookedByEmail)
	if !ok {
		return forbidden(c)
	}
	eventDate, ok := parseEventDate(req.EventDate)
	if !ok {
		return badRequest(c, "eventDate must be an RFC 3339 timestamp or YYYY-MM-DD")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.CreateBooking(ctx, service.CreateBookingInput{
		BookedByEmail: email,
		CustomerName:  req.CustomerName,
		ServiceID:     req.ServiceID,
		BookingType:   req.BookingType,
		Quantity:      rawQuantity(req.Quantity),
		EventDate:     eventDate,
		Location:      req.Location,
		Notes:         req.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ListMine handles GET /v1/bookings?email=.
func (h *BookingHandler) ListMine(c echo.Context) error {
	email, ok := requireSelf(c, c.QueryParam("email"))
	if !ok {
		return forbidden(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Bookings.ListForClient(ctx, email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/bookings/:id.  Clients see their own bookings,
// decorators the ones assigned to them, admins all.
func (h *BookingHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	me := principal(c)
	if strings.EqualFold(b.BookedByEmail, me) {
		return c.JSON(http.StatusOK, b)
	}
	u, err := h.Users.Get(ctx, me)
	if err != nil {
		return forbidden(c)
	}
	switch {
	case u.Role == model.RoleAdmin:
	case u.Role == model.RoleDecorator && u.DecoratorID != nil && b.HasDecorator(*u.DecoratorID):
	default:
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, b)
}

// ListAll handles GET /v1/admin/bookings.
func (h *BookingHandler) ListAll(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Bookings.ListAdmin(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type assignReq struct {
	DecoratorID string `json:"decoratorId"`
}

// Assign handles PATCH /v1/admin/bookings/:id/assign.
func (h *BookingHandler) Assign(c echo.Context) error {
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.AssignDecorator(ctx, c.Param("id"), strings.TrimSpace(req.DecoratorID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /v1/admin/bookings/:id/status.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.UpdateStatus(ctx, c.Param("id"), strings.TrimSpace(req.Status))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Delete handles DELETE /v1/admin/bookings/:id.
func (h *BookingHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Bookings.DeleteBooking(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
