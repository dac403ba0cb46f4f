package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(10_050) // 100.50 KES
	assert.Equal(t, "100.5", m.ToDecimal().String())
}

func TestFromDecimal(t *testing.T) {
	cents, err := FromDecimal(decimal.NewFromFloat(10.50))
	require.NoError(t, err)
	assert.Equal(t, int64(1_050), cents)

	_, err = FromDecimal(decimal.RequireFromString("1.005"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{in: "1500", want: 150_000, ok: true},
		{in: "99.50", want: 9_950, ok: true},
		{in: "0.01", want: 1, ok: true},
		{in: "abc", ok: false},
		{in: "1.234", ok: false},
		{in: "1000000000", want: MaxAmountCents, ok: true},
		{in: "1000000000.01", ok: false},
		{in: "-1000000000.01", ok: false},
		{in: "184467440737095516.17", ok: false},
		{in: "92233720368547758.08", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMoney_MulRate(t *testing.T) {
	// 50% of KES 100.01 rounds down to KES 50.00
	m, err := NewMoney(10_001).MulRate(decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), m.Cents)

	doubled, err := FromShillings(1200).MulRate(decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(240_000), doubled.Cents)

	_, err = NewMoney(5_000_000_000_000_000_000).MulRate(decimal.NewFromInt(2))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewMoney(math.MaxInt64).MulRate(decimal.RequireFromString("-1.5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "KES 1200.00", FromShillings(1200).String())
}

func TestCardPrice(t *testing.T) {
	price, ok := CardPrice(" usd ")
	require.True(t, ok)
	assert.Equal(t, int64(120_000), price)

	_, ok = CardPrice("KES")
	assert.False(t, ok)
	assert.True(t, IsRentalCurrency("kes"))
	assert.False(t, IsRentalCurrency("NGN"))
	assert.Equal(t, []string{"AUD", "CAD", "EUR", "GBP", "JPY", "KES", "USD"}, RentalCurrencies())
}
