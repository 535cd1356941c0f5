package payment

import (
	"context"
	"testing"

	"github.com/omise/omise-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFromChargeSuccessful(t *testing.T) {
	ch := &omise.Charge{
		Status:       omise.ChargeStatus("successful"),
		Amount:       125050,
		Currency:     "thb",
		Transaction:  "trxn_test_1",
		AuthorizeURI: "https://pay.example/authorize",
		Metadata: map[string]interface{}{
			"bookingId":     "b1",
			"customerEmail": "ann@example.com",
			"attempt":       2,
		},
	}
	ch.ID = "chrg_test_1"

	s := sessionFromCharge(ch)
	assert.Equal(t, "chrg_test_1", s.ID)
	assert.Equal(t, StatusPaid, s.Status)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(s.AmountTotal))
	assert.Equal(t, "trxn_test_1", s.PaymentIntentID)
	assert.Equal(t, "ann@example.com", s.CustomerEmail)
	assert.Equal(t, "b1", s.Metadata["bookingId"])
	_, hasNonString := s.Metadata["attempt"]
	assert.False(t, hasNonString)
	assert.Equal(t, "https://pay.example/authorize", s.URL)
}

func TestSessionFromChargePendingFallsBackToChargeID(t *testing.T) {
	ch := &omise.Charge{Status: omise.ChargeStatus("pending"), Amount: 100}
	ch.ID = "chrg_test_2"

	s := sessionFromCharge(ch)
	assert.Equal(t, "pending", s.Status)
	assert.Equal(t, "chrg_test_2", s.PaymentIntentID)
}

func TestMinorUnitConversion(t *testing.T) {
	assert.Equal(t, int64(100000), toMinor(decimal.NewFromInt(1000), 2))
	assert.Equal(t, int64(1999), toMinor(decimal.RequireFromString("19.99"), 2))
	assert.True(t, decimal.RequireFromString("19.99").Equal(fromMinor(1999, 2)))
}

func TestZeroDecimalCurrency(t *testing.T) {
	exp, err := MinorUnits("JPY")
	require.NoError(t, err)
	assert.Equal(t, int32(0), exp)
	assert.Equal(t, int64(1000), toMinor(decimal.NewFromInt(1000), exp))

	ch := &omise.Charge{Status: omise.ChargeStatus("successful"), Amount: 1000, Currency: "jpy"}
	assert.True(t, decimal.NewFromInt(1000).Equal(sessionFromCharge(ch).AmountTotal))

	_, err = MinorUnits("xyz")
	assert.Error(t, err)
}

func TestCreateSessionRejectsUnsupportedCurrency(t *testing.T) {
	gw, err := NewOmiseGateway("pkey_test_1", "skey_test_1", "promptpay")
	require.NoError(t, err)
	_, err = gw.CreateSession(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(10), Currency: "xyz"})
	assert.ErrorContains(t, err, "unsupported currency")
}
