// Package profit decomposes the profit of completed sale lines into its
// three sources: base markup, supplier discounts, and price rounding. The
// decomposition feeds financial reporting and must be exact.
package profit

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/pricing"
)

// Line is the shape of one completed sale line as the aggregator needs it.
// OriginalCost and DiscountedCost are only consulted when the line was sold
// from a discounted batch.
type Line struct {
	Quantity          int64
	SellingPriceExVAT decimal.Decimal
	ActualCost        decimal.Decimal
	RoundingExtra     decimal.Decimal
	Profit            decimal.Decimal
	OriginalCost      decimal.Decimal
	DiscountedCost    *decimal.Decimal
}

// Breakdown is the three-way profit decomposition over a set of lines.
type Breakdown struct {
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	TotalProfit          decimal.Decimal `json:"totalProfit"`
	BaseProfit           decimal.Decimal `json:"baseProfit"`
	DiscountProfit       decimal.Decimal `json:"discountProfit"`
	RoundingProfit       decimal.Decimal `json:"roundingProfit"`
	AverageMarginPercent decimal.Decimal `json:"averageMarginPercent"`
	LineCount            int             `json:"lineCount"`
}

// Aggregator sums and attributes profit across sale lines. The markup
// multiplier must match the one used at pricing time so discount attribution
// is exact; the zero value uses pricing.DefaultMarkup.
type Aggregator struct {
	Markup decimal.Decimal
}

func (a Aggregator) markup() decimal.Decimal {
	if a.Markup.Cmp(decimal.Zero) <= 0 {
		return pricing.DefaultMarkup
	}
	return a.Markup
}

// Aggregate computes the profit breakdown for the provided lines. Lines with
// a non-positive quantity are counted as quantity one; zero total revenue
// yields a zero margin instead of a division error.
func (a Aggregator) Aggregate(lines []Line) Breakdown {
	markup := a.markup()
	b := Breakdown{
		TotalRevenue:   decimal.Zero,
		TotalProfit:    decimal.Zero,
		BaseProfit:     decimal.Zero,
		DiscountProfit: decimal.Zero,
		RoundingProfit: decimal.Zero,
	}
	for _, line := range lines {
		qty := decimal.NewFromInt(max64(line.Quantity, 1))
		b.TotalRevenue = b.TotalRevenue.Add(line.SellingPriceExVAT.Mul(qty))
		b.TotalProfit = b.TotalProfit.Add(line.Profit.Mul(qty))
		b.RoundingProfit = b.RoundingProfit.Add(line.RoundingExtra.Mul(qty))
		if line.DiscountedCost != nil {
			saved := line.OriginalCost.Sub(*line.DiscountedCost)
			b.DiscountProfit = b.DiscountProfit.Add(saved.Mul(markup).Mul(qty))
		}
		b.LineCount++
	}
	b.BaseProfit = b.TotalProfit.Sub(b.DiscountProfit).Sub(b.RoundingProfit)
	if b.TotalRevenue.Cmp(decimal.Zero) > 0 {
		b.AverageMarginPercent = b.TotalProfit.Div(b.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		b.AverageMarginPercent = decimal.Zero
	}
	return b
}

func max64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
