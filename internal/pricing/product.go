package pricing

import "github.com/shopspring/decimal"

// ProductCostInput carries the cost terms of one purchase invoice line.
type ProductCostInput struct {
	OriginalCost    decimal.Decimal
	DiscountPercent decimal.Decimal
	HasVAT          bool
	VATRate         decimal.Decimal
}

// TierQuote holds one derived price tier at every stage: before VAT, after
// VAT, and rounded up to the customer facing multiple of five.
type TierQuote struct {
	ExVAT   decimal.Decimal
	WithVAT decimal.Decimal
	Rounded decimal.Decimal
}

// ProductQuote is the full pricing breakdown persisted onto a batch.
//
// Minimum is nil unless a supplier discount applies: the floor price exists
// only when there is a discounted cost to derive it from.
type ProductQuote struct {
	OriginalCost   decimal.Decimal
	DiscountedCost *decimal.Decimal
	ActualCost     decimal.Decimal
	HasDiscount    bool
	Target         TierQuote
	Minimum        *TierQuote
}

// QuoteProduct derives the minimum and target selling prices for a purchase
// line. The target tier is always computed from the original, undiscounted
// cost: a supplier discount widens the margin instead of lowering the
// recommended price.
func (c Calculator) QuoteProduct(in ProductCostInput) (ProductQuote, error) {
	if in.OriginalCost.Cmp(decimal.Zero) <= 0 {
		return ProductQuote{}, ErrNonPositiveCost
	}
	// A full 100% discount would leave a zero actual cost with no price to
	// derive from it, so the valid range is [0,100).
	if in.DiscountPercent.Cmp(decimal.Zero) < 0 || in.DiscountPercent.Cmp(hundred) >= 0 {
		return ProductQuote{}, ErrDiscountOutOfRange
	}
	if err := validateVATRate(in.VATRate); err != nil {
		return ProductQuote{}, err
	}

	quote := ProductQuote{
		OriginalCost: in.OriginalCost,
		ActualCost:   in.OriginalCost,
	}

	if in.DiscountPercent.Cmp(decimal.Zero) > 0 {
		discounted := in.OriginalCost.Mul(hundred.Sub(in.DiscountPercent)).Div(hundred).Round(2)
		quote.DiscountedCost = &discounted
		quote.ActualCost = discounted
		quote.HasDiscount = true
	}

	quote.Target = c.quoteTier(in.OriginalCost, in.VATRate, in.HasVAT)
	if quote.HasDiscount {
		minimum := c.quoteTier(*quote.DiscountedCost, in.VATRate, in.HasVAT)
		quote.Minimum = &minimum
	}
	return quote, nil
}

func (c Calculator) quoteTier(cost, vatRate decimal.Decimal, hasVAT bool) TierQuote {
	exVAT := c.ApplyMarkup(cost)
	withVAT := ApplyVAT(exVAT, vatRate, hasVAT)
	return TierQuote{
		ExVAT:   exVAT,
		WithVAT: withVAT,
		Rounded: RoundUpToFive(withVAT),
	}
}
