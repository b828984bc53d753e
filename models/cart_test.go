package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_TaxedAmount(t *testing.T) {
	cart := Cart{Currency: "EUR", Items: []CartItem{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.99"), TaxRate: decimal.RequireFromString("0.2")},
		{
			Quantity:        1,
			UnitPrice:       decimal.RequireFromString("100"),
			TaxRate:         decimal.RequireFromString("0.2"),
			CountryTaxRates: map[string]decimal.Decimal{"DE": decimal.RequireFromString("0.19")},
		},
	}}

	fr, err := cart.TaxedAmount("FR")
	require.NoError(t, err)
	// 0.99 * 1.2 = 1.188 -> 1.19 per unit
	assert.True(t, decimal.RequireFromString("123.57").Equal(fr), fr.String())

	de, err := cart.TaxedAmount("de")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("122.57").Equal(de), de.String())
}

func TestCart_TaxedAmountRequiresCountry(t *testing.T) {
	_, err := Cart{}.TaxedAmount("  ")
	assert.ErrorIs(t, err, ErrMissingDeliveryCountry)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusNotPaid, StatusPaid, true},
		{StatusNotPaid, StatusCanceled, true},
		{StatusCanceled, StatusPaid, true},
		{StatusPaid, StatusCanceled, false},
		{StatusPaid, StatusPaid, false},
		{StatusPaid, StatusRefunded, true},
		{StatusSent, StatusNotPaid, false},
		{"unknown", StatusPaid, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrder_IsPaid(t *testing.T) {
	for status, want := range map[string]bool{
		StatusNotPaid:    false,
		StatusPaid:       true,
		StatusProcessing: true,
		StatusSent:       true,
		StatusCanceled:   false,
		StatusRefunded:   false,
	} {
		o := Order{Status: status}
		assert.Equal(t, want, o.IsPaid(), status)
	}
	assert.Empty(t, (&Order{}).TransactionRefValue())
}

func TestSessionState(t *testing.T) {
	assert.True(t, SessionState{}.IsEmpty())
	assert.False(t, SessionState{}.HasIntent())
	s := SessionState{PaymentIntentID: "pi_1"}
	assert.True(t, s.HasIntent())
	assert.False(t, s.IsEmpty())
}
