package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/service"
)

// PaymentHandler serves checkout, settlement and the payment history.
type PaymentHandler struct {
	Settlement *service.SettlementEngine
}

func NewPaymentHandler(s *service.SettlementEngine) *PaymentHandler {
	return &PaymentHandler{Settlement: s}
}

type checkoutReq struct {
	BookingID string `json:"bookingId"`
}

// Checkout handles POST /v1/payments/checkout.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Settlement.Checkout(ctx, strings.TrimSpace(req.BookingID), principal(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type confirmReq struct {
	SessionID string `json:"sessionId"`
}

// Confirm handles POST /v1/payments/confirm, called by the client after it
// returns from the payment page.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	txID, err := h.Settlement.Settle(ctx, req.SessionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactionId": txID})
}

// omiseEvent is the subset of an Omise webhook payload we read.  Only the
// charge id is used; the charge itself is re-read from the gateway.
type omiseEvent struct {
	Key  string `json:"key"`
	Data struct {
		Object string `json:"object"`
		ID     string `json:"id"`
	} `json:"data"`
}

// Webhook handles POST /v1/payments/webhook.  Outcomes that a redelivery
// cannot change are acknowledged with 200 so the gateway stops retrying;
// internal failures answer 500 to get the event delivered again.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var ev omiseEvent
	if err := c.Bind(&ev); err != nil {
		return badRequest(c, "invalid body")
	}
	if ev.Key != "charge.complete" || ev.Data.Object != "charge" || ev.Data.ID == "" {
		return c.JSON(http.StatusOK, echo.Map{"ignored": true})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	txID, err := h.Settlement.Settle(ctx, ev.Data.ID)
	if err != nil {
		if service.KindOf(err) == service.KindInternal {
			return writeError(c, err)
		}
		zap.L().Info("webhook: charge not settled", zap.String("charge_id", ev.Data.ID),
			zap.String("reason", service.Message(err)))
		return c.JSON(http.StatusOK, echo.Map{"settled": false, "reason": service.Message(err)})
	}
	return c.JSON(http.StatusOK, echo.Map{"settled": true, "transactionId": txID})
}

// History handles GET /v1/payments?email=.
func (h *PaymentHandler) History(c echo.Context) error {
	email, ok := requireSelf(c, c.QueryParam("email"))
	if !ok {
		return forbidden(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Settlement.PaymentHistory(ctx, email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListAll handles GET /v1/admin/payments.
func (h *PaymentHandler) ListAll(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Settlement.AllPayments(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
