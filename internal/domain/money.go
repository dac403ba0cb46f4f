package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// CentsPerUnit is the number of minor units in one shilling.
const CentsPerUnit = 100

// MaxAmountCents is the largest single amount accepted anywhere: KES 1e9.
const MaxAmountCents int64 = 1_000_000_000 * CentsPerUnit

var (
	hundred  = decimal.NewFromInt(CentsPerUnit)
	maxCents = decimal.NewFromInt(MaxAmountCents)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// ErrInvalidAmount is returned when a decimal amount cannot be represented in cents.
var ErrInvalidAmount = errors.New("invalid amount")

// Money is a KES value stored as BIGINT cents to avoid floating point errors.
type Money struct {
	Cents int64
}

// NewMoney creates a Money from cents.
func NewMoney(cents int64) Money {
	return Money{Cents: cents}
}

// FromShillings converts whole shillings into Money.
func FromShillings(units int64) Money {
	return Money{Cents: units * CentsPerUnit}
}

// ToDecimal converts the cents to a shopspring/decimal.Decimal in shillings.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(hundred)
}

// FromDecimal converts a shilling decimal to cents, rejecting sub-cent precision.
func FromDecimal(d decimal.Decimal) (int64, error) {
	cents := d.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than two decimal places", ErrInvalidAmount, d.String())
	}
	if cents.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %s exceeds the maximum of %s", ErrInvalidAmount, d.String(), NewMoney(MaxAmountCents))
	}
	return cents.IntPart(), nil
}

// ParseAmount parses a user supplied shilling amount such as "1500" or "99.50".
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MulRate scales the amount by a rate and rounds down to whole cents. Results
// outside the int64 range fail with ErrInvalidAmount.
func (m Money) MulRate(rate decimal.Decimal) (Money, error) {
	scaled := decimal.NewFromInt(m.Cents).Mul(rate).Floor()
	if scaled.GreaterThan(maxInt64) || scaled.LessThan(minInt64) {
		return Money{}, fmt.Errorf("%w: %s times %s overflows", ErrInvalidAmount, m, rate)
	}
	return Money{Cents: scaled.IntPart()}, nil
}

// String renders the amount as "KES 1500.00".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", BaseCurrency, m.ToDecimal().StringFixed(2))
}
