package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/metrics"
	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/payment"
	"github.com/iliyamo/styledecor/internal/queue"
	"github.com/iliyamo/styledecor/internal/repository"
)

// Metadata keys written on a checkout session and read back at settlement.
const (
	metaBookingID     = "bookingId"
	metaServiceName   = "serviceName"
	metaCustomerEmail = "customerEmail"
)

// SettlementEngine turns a confirmed external payment into the booking's
// paid state and a payment ledger row.  Settling is safe to repeat: the
// booking write is guarded on paymentStatus and the ledger insert is keyed
// on (bookingId, transactionId).
type SettlementEngine struct {
	Bookings BookingStore
	Payments PaymentStore
	Gateway  payment.Gateway
	Events   Publisher
	Now      Clock

	Currency   string
	SuccessURL string
	CancelURL  string
}

func NewSettlementEngine(b BookingStore, p PaymentStore, gw payment.Gateway, pub Publisher, currency, siteDomain string) *SettlementEngine {
	site := strings.TrimRight(siteDomain, "/")
	return &SettlementEngine{
		Bookings:   b,
		Payments:   p,
		Gateway:    gw,
		Events:     orNop(pub),
		Now:        utcNow,
		Currency:   currency,
		SuccessURL: site + "/dashboard/payment-success",
		CancelURL:  site + "/dashboard/payment-cancelled",
	}
}

// CheckoutResult is what the client is redirected with.
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Checkout opens a payment session for the principal's own unpaid
// decoration booking.
func (s *SettlementEngine) Checkout(ctx context.Context, bookingID, principal string) (*CheckoutResult, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return nil, invalid("malformed booking id")
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fromStore(err, "booking")
	}
	if !strings.EqualFold(b.BookedByEmail, principal) {
		return nil, newError(KindForbidden, "booking belongs to another account")
	}
	if b.PaymentStatus == model.PaymentPaid {
		return nil, newError(KindConflict, "booking is already paid")
	}
	if b.BookingType != model.BookingTypeDecoration || !b.PayableAmount.IsPositive() {
		return nil, newError(KindFailedPrecondition, "booking has nothing to pay")
	}

	sess, err := s.Gateway.CreateSession(ctx, payment.CheckoutRequest{
		Amount:   b.PayableAmount,
		Currency: s.Currency,
		Metadata: map[string]string{
			metaBookingID:     b.ID,
			metaServiceName:   b.ServiceName,
			metaCustomerEmail: b.BookedByEmail,
		},
		SuccessURL: s.SuccessURL + "?bookingId=" + b.ID,
		CancelURL:  s.CancelURL,
	})
	if err != nil {
		return nil, internal("create payment session", err)
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// Settle resolves sessionRef and applies it.  It returns the transaction
// reference.  A session that was already applied is NotFound; if the
// booking carries the same transaction the ledger insert still runs so a
// crash between the two writes is healed by the retry.
func (s *SettlementEngine) Settle(ctx context.Context, sessionRef string) (string, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return "", invalid("session reference is required")
	}
	sess, err := s.Gateway.ResolveSession(ctx, sessionRef)
	if err != nil {
		metrics.RecordSettlement("error")
		if errors.Is(err, payment.ErrSessionNotFound) {
			return "", notFound("payment session not found")
		}
		return "", internal("resolve payment session", err)
	}
	if sess.Status != payment.StatusPaid {
		metrics.RecordSettlement("unpaid")
		return "", newError(KindFailedPrecondition, "payment is not completed")
	}
	bookingID := sess.Metadata[metaBookingID]
	txID := sess.PaymentIntentID
	if bookingID == "" || txID == "" {
		metrics.RecordSettlement("error")
		return "", newError(KindFailedPrecondition, "payment session carries no booking reference")
	}
	email := sess.CustomerEmail
	if email == "" {
		email = sess.Metadata[metaCustomerEmail]
	}

	now := s.Now()
	ledger := &model.Payment{
		BookingID:     bookingID,
		TransactionID: txID,
		Amount:        sess.AmountTotal,
		Currency:      sess.Currency,
		PayerEmail:    email,
		ServiceName:   sess.Metadata[metaServiceName],
		PaidAt:        now,
	}

	err = s.Bookings.MarkPaid(ctx, bookingID, model.PaymentUpdate{
		TransactionID: txID,
		AmountPaid:    sess.AmountTotal,
		PaidAt:        now,
	})
	if errors.Is(err, repository.ErrNotFound) {
		s.healLedger(ctx, bookingID, ledger)
		metrics.RecordSettlement("duplicate")
		return "", notFound("booking not found or already settled")
	}
	if err != nil {
		metrics.RecordSettlement("error")
		return "", internal("mark booking paid", err)
	}

	if _, err := s.Payments.InsertIfAbsent(ctx, ledger); err != nil {
		zap.L().Error("settle: ledger insert failed after booking update",
			zap.String("booking_id", bookingID), zap.String("transaction_id", txID), zap.Error(err))
		metrics.RecordPartialWrite("settle")
		metrics.RecordSettlement("error")
		return "", partial(internal("insert payment", err))
	}
	metrics.RecordSettlement("settled")
	metrics.RecordTransition(model.BookingConfirmed)
	ev := queue.Event{Key: queue.KeyBookingConfirmed, BookingID: bookingID, Email: ledger.PayerEmail,
		Status: model.BookingConfirmed, ServiceName: ledger.ServiceName, Amount: ledger.Amount.String(),
		TransactionID: txID, OccurredAt: now}
	if err := s.Events.Publish(ctx, ev); err != nil {
		zap.L().Warn("publish event failed", zap.String("key", ev.Key), zap.Error(err))
	}
	return txID, nil
}

// healLedger writes the ledger row for a booking that is already paid with
// the same transaction.  A different transaction on the booking is a
// second payment for it and is only logged.
func (s *SettlementEngine) healLedger(ctx context.Context, bookingID string, ledger *model.Payment) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return
	}
	if b.TransactionID == nil || *b.TransactionID != ledger.TransactionID {
		if b.PaymentStatus == model.PaymentPaid {
			zap.L().Warn("settle: booking already paid by another transaction",
				zap.String("booking_id", bookingID), zap.String("transaction_id", ledger.TransactionID))
		}
		return
	}
	if b.PaidAt != nil {
		ledger.PaidAt = *b.PaidAt
	}
	inserted, err := s.Payments.InsertIfAbsent(ctx, ledger)
	if err != nil {
		zap.L().Error("settle: ledger repair failed", zap.String("booking_id", bookingID), zap.Error(err))
		return
	}
	if inserted {
		zap.L().Info("settle: repaired missing ledger row", zap.String("booking_id", bookingID),
			zap.String("transaction_id", ledger.TransactionID))
	}
}

func (s *SettlementEngine) PaymentHistory(ctx context.Context, email string) ([]model.Payment, error) {
	out, err := s.Payments.ListByEmail(ctx, email)
	if err != nil {
		return nil, internal("list payments", err)
	}
	return out, nil
}

func (s *SettlementEngine) AllPayments(ctx context.Context) ([]model.Payment, error) {
	out, err := s.Payments.ListAll(ctx)
	if err != nil {
		return nil, internal("list payments", err)
	}
	return out, nil
}
