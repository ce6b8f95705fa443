package pricing

import "github.com/shopspring/decimal"

// SaleInput carries the terms of one sale line at the point of sale.
// MinimumExVAT, when set, is the batch floor price the chosen selling price
// must not undercut.
type SaleInput struct {
	ActualCost        decimal.Decimal
	SellingPriceExVAT decimal.Decimal
	HasVAT            bool
	VATRate           decimal.Decimal
	Tier              PriceTier
	MinimumExVAT      *decimal.Decimal
}

// SaleQuote is the computed pricing of one sale line. VAT never contributes
// to Profit; RoundingExtra is always non-negative and captured as profit.
type SaleQuote struct {
	SellingPriceExVAT decimal.Decimal
	VATAmount         decimal.Decimal
	FinalPriceRaw     decimal.Decimal
	FinalPriceRounded decimal.Decimal
	RoundingExtra     decimal.Decimal
	Profit            decimal.Decimal
	Tier              PriceTier
}

// QuoteSale computes VAT, the rounded final price, the rounding extra, and
// the net profit for a sale line. The floor price rule is re-checked here
// even though callers validate it first: no line item may be created below
// the batch minimum.
func QuoteSale(in SaleInput) (SaleQuote, error) {
	if in.ActualCost.Cmp(decimal.Zero) <= 0 || in.SellingPriceExVAT.Cmp(decimal.Zero) <= 0 {
		return SaleQuote{}, ErrNonPositiveCost
	}
	if err := validateVATRate(in.VATRate); err != nil {
		return SaleQuote{}, err
	}
	if !in.Tier.Valid() {
		return SaleQuote{}, ErrInvalidPriceTier
	}
	if in.MinimumExVAT != nil && in.SellingPriceExVAT.Cmp(*in.MinimumExVAT) < 0 {
		return SaleQuote{}, &FloorPriceError{
			SellingPriceExVAT: in.SellingPriceExVAT,
			MinimumExVAT:      *in.MinimumExVAT,
		}
	}

	vatAmount := decimal.Zero
	if in.HasVAT {
		vatAmount = in.SellingPriceExVAT.Mul(in.VATRate).Div(hundred).Round(2)
	}
	raw := in.SellingPriceExVAT.Add(vatAmount)
	rounded := RoundUpToFive(raw)
	extra := rounded.Sub(raw)

	return SaleQuote{
		SellingPriceExVAT: in.SellingPriceExVAT,
		VATAmount:         vatAmount,
		FinalPriceRaw:     raw,
		FinalPriceRounded: rounded,
		RoundingExtra:     extra,
		Profit:            in.SellingPriceExVAT.Sub(in.ActualCost).Add(extra),
		Tier:              in.Tier,
	}, nil
}
