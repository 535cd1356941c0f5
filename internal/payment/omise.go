package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// minorUnits is the subunit exponent Omise charges in, per currency.
// Amounts for jpy are whole yen.
var minorUnits = map[string]int32{
	"thb": 2,
	"jpy": 0,
	"sgd": 2,
	"myr": 2,
	"usd": 2,
	"eur": 2,
	"gbp": 2,
	"aud": 2,
	"cad": 2,
	"chf": 2,
	"cny": 2,
	"dkk": 2,
	"hkd": 2,
}

// MinorUnits returns the subunit exponent for currency, which is matched
// case-insensitively.
func MinorUnits(currency string) (int32, error) {
	exp, ok := minorUnits[strings.ToLower(currency)]
	if !ok {
		return 0, fmt.Errorf("omise: unsupported currency %q", currency)
	}
	return exp, nil
}

// OmiseGateway implements Gateway with offsite Omise charges: a Source of
// the configured type is created first, then a Charge that carries the
// booking metadata and a return URI.  The charge id is the session id.
type OmiseGateway struct {
	client     *omise.Client
	sourceType string
}

// NewOmiseGateway builds a client from the public and secret keys.
func NewOmiseGateway(publicKey, secretKey, sourceType string) (*OmiseGateway, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	return &OmiseGateway{client: c, sourceType: sourceType}, nil
}

func (g *OmiseGateway) CreateSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	exp, err := MinorUnits(req.Currency)
	if err != nil {
		return nil, err
	}
	amount := toMinor(req.Amount, exp)
	if amount <= 0 {
		return nil, fmt.Errorf("omise: amount must be positive, got %s", req.Amount)
	}

	src := &omise.Source{}
	if err := g.with(ctx).Do(src, &operations.CreateSource{
		Type:     g.sourceType,
		Amount:   amount,
		Currency: req.Currency,
	}); err != nil {
		return nil, fmt.Errorf("omise create source: %w", err)
	}

	meta := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["cancelUrl"] = req.CancelURL

	ch := &omise.Charge{}
	if err := g.with(ctx).Do(ch, &operations.CreateCharge{
		Amount:    amount,
		Currency:  req.Currency,
		Source:    src.ID,
		ReturnURI: req.SuccessURL,
		Metadata:  meta,
	}); err != nil {
		return nil, fmt.Errorf("omise create charge: %w", err)
	}
	zap.L().Info("omise charge created", zap.String("charge_id", ch.ID), zap.String("status", string(ch.Status)))
	return sessionFromCharge(ch), nil
}

func (g *OmiseGateway) ResolveSession(ctx context.Context, id string) (*Session, error) {
	ch := &omise.Charge{}
	if err := g.with(ctx).Do(ch, &operations.RetrieveCharge{ChargeID: id}); err != nil {
		var oe *omise.Error
		if errors.As(err, &oe) && oe.Code == "not_found" {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("omise retrieve charge: %w", err)
	}
	return sessionFromCharge(ch), nil
}

// with returns a copy of the client bound to ctx.  The shared client is
// never mutated.
func (g *OmiseGateway) with(ctx context.Context) *omise.Client {
	c := *g.client
	c.WithContext(ctx)
	return &c
}

// sessionFromCharge maps an Omise charge onto the gateway session shape.
func sessionFromCharge(ch *omise.Charge) *Session {
	// currencies outside the table read as two decimals
	exp, err := MinorUnits(ch.Currency)
	if err != nil {
		exp = 2
	}
	s := &Session{
		ID:              ch.ID,
		URL:             ch.AuthorizeURI,
		Status:          string(ch.Status),
		AmountTotal:     fromMinor(ch.Amount, exp),
		Currency:        ch.Currency,
		PaymentIntentID: ch.Transaction,
		Metadata:        map[string]string{},
	}
	if s.Status == "successful" {
		s.Status = StatusPaid
	}
	if s.PaymentIntentID == "" {
		s.PaymentIntentID = ch.ID
	}
	for k, v := range ch.Metadata {
		if str, ok := v.(string); ok {
			s.Metadata[k] = str
		}
	}
	s.CustomerEmail = s.Metadata["customerEmail"]
	return s
}

func toMinor(d decimal.Decimal, exp int32) int64 {
	return d.Shift(exp).Round(0).IntPart()
}

func fromMinor(v int64, exp int32) decimal.Decimal {
	return decimal.New(v, -exp)
}
