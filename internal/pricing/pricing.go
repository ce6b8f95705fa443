// Package pricing implements the batch pricing rules used at purchase and
// sale time: markup application, VAT, and the round-up-to-five policy that
// produces the customer facing price.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PriceTier identifies which derived price a sale line was priced against.
type PriceTier string

const (
	// TierMinimum is the discount floor price, available only when the
	// supplier granted a discount on the batch.
	TierMinimum PriceTier = "MINIMUM"
	// TierTarget is the recommended selling price derived from the
	// undiscounted cost.
	TierTarget PriceTier = "TARGET"
)

// Valid reports whether the tier is one of the closed set of tiers.
func (t PriceTier) Valid() bool {
	return t == TierMinimum || t == TierTarget
}

var (
	// ErrNonPositiveCost is returned when a cost or price input is zero or negative.
	ErrNonPositiveCost = errors.New("pricing: cost must be positive")
	// ErrDiscountOutOfRange is returned when the discount percent is outside
	// [0,100). The upper bound is exclusive: a 100% discount would make the
	// actual cost zero, and the batches table enforces the same bound.
	ErrDiscountOutOfRange = errors.New("pricing: discount percent out of range")
	// ErrVATRateOutOfRange is returned when the VAT rate is outside [0,100].
	ErrVATRateOutOfRange = errors.New("pricing: vat rate out of range")
	// ErrInvalidPriceTier is returned when the tier is not part of the closed set.
	ErrInvalidPriceTier = errors.New("pricing: invalid price tier")
	// ErrBelowFloorPrice is returned when the chosen selling price undercuts
	// the batch floor price.
	ErrBelowFloorPrice = errors.New("pricing: selling price below floor price")
)

var (
	five    = decimal.NewFromInt(5)
	hundred = decimal.NewFromInt(100)
)

// DefaultMarkup is the standard markup multiplier applied to purchase costs.
var DefaultMarkup = decimal.RequireFromString("1.33")

// Calculator derives prices from costs using a fixed markup multiplier.
// The zero value uses DefaultMarkup.
type Calculator struct {
	Markup decimal.Decimal
}

// NewCalculator constructs a Calculator, falling back to DefaultMarkup when
// the provided multiplier is not positive.
func NewCalculator(markup decimal.Decimal) Calculator {
	if markup.Cmp(decimal.Zero) <= 0 {
		markup = DefaultMarkup
	}
	return Calculator{Markup: markup}
}

func (c Calculator) markup() decimal.Decimal {
	if c.Markup.Cmp(decimal.Zero) <= 0 {
		return DefaultMarkup
	}
	return c.Markup
}

// ApplyMarkup converts a purchase cost into an ex-VAT selling price.
func (c Calculator) ApplyMarkup(cost decimal.Decimal) decimal.Decimal {
	return cost.Mul(c.markup()).Round(2)
}

// ApplyVAT adds VAT to an ex-VAT price. The input is returned unchanged when
// hasVAT is false. The result is kept at currency precision.
func ApplyVAT(exVAT, vatRate decimal.Decimal, hasVAT bool) decimal.Decimal {
	if !hasVAT {
		return exVAT
	}
	return exVAT.Add(exVAT.Mul(vatRate).Div(hundred)).Round(2)
}

// RoundUpToFive rounds a price up to the nearest multiple of five. Multiples
// of five are returned unchanged. Inputs are expected to be positive prices.
func RoundUpToFive(v decimal.Decimal) decimal.Decimal {
	return v.Div(five).Ceil().Mul(five)
}

// FloorPriceError carries the context an operator needs when a sale is
// rejected for undercutting the floor price.
type FloorPriceError struct {
	SellingPriceExVAT decimal.Decimal
	MinimumExVAT      decimal.Decimal
}

// Error implements the error interface.
func (e *FloorPriceError) Error() string {
	return "pricing: selling price " + e.SellingPriceExVAT.StringFixed(2) +
		" below floor price " + e.MinimumExVAT.StringFixed(2)
}

// Unwrap allows errors.Is checks against ErrBelowFloorPrice.
func (e *FloorPriceError) Unwrap() error { return ErrBelowFloorPrice }

func validateVATRate(rate decimal.Decimal) error {
	if rate.Cmp(decimal.Zero) < 0 || rate.Cmp(hundred) > 0 {
		return ErrVATRateOutOfRange
	}
	return nil
}
