package profit

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateDecomposition(t *testing.T) {
	discounted := dec("90")
	lines := []Line{
		{
			// Discounted batch sold at the target price.
			Quantity:          1,
			SellingPriceExVAT: dec("133.00"),
			ActualCost:        dec("90"),
			RoundingExtra:     dec("0.72"),
			Profit:            dec("43.72"),
			OriginalCost:      dec("100"),
			DiscountedCost:    &discounted,
		},
		{
			// Undiscounted batch sold at its target price.
			Quantity:          1,
			SellingPriceExVAT: dec("66.50"),
			ActualCost:        dec("50"),
			RoundingExtra:     dec("2.86"),
			Profit:            dec("19.36"),
			OriginalCost:      dec("50"),
		},
	}

	b := Aggregator{}.Aggregate(lines)

	if !b.TotalProfit.Equal(dec("63.08")) {
		t.Fatalf("total profit = %s, want 63.08", b.TotalProfit)
	}
	if !b.RoundingProfit.Equal(dec("3.58")) {
		t.Fatalf("rounding profit = %s, want 3.58", b.RoundingProfit)
	}
	if !b.DiscountProfit.Equal(dec("13.30")) {
		t.Fatalf("discount profit = %s, want 13.30", b.DiscountProfit)
	}
	if !b.BaseProfit.Equal(dec("46.20")) {
		t.Fatalf("base profit = %s, want 46.20", b.BaseProfit)
	}
	sum := b.BaseProfit.Add(b.DiscountProfit).Add(b.RoundingProfit)
	if !sum.Equal(b.TotalProfit) {
		t.Fatalf("decomposition does not sum: %s != %s", sum, b.TotalProfit)
	}
	if !b.TotalRevenue.Equal(dec("199.50")) {
		t.Fatalf("total revenue = %s, want 199.50", b.TotalRevenue)
	}
	// 63.08 / 199.50 * 100 rounded to two places.
	if !b.AverageMarginPercent.Equal(dec("31.62")) {
		t.Fatalf("margin = %s, want 31.62", b.AverageMarginPercent)
	}
	if b.LineCount != 2 {
		t.Fatalf("line count = %d, want 2", b.LineCount)
	}
}

func TestAggregateQuantityMultiplies(t *testing.T) {
	lines := []Line{{
		Quantity:          3,
		SellingPriceExVAT: dec("66.50"),
		ActualCost:        dec("50"),
		RoundingExtra:     dec("2.86"),
		Profit:            dec("19.36"),
		OriginalCost:      dec("50"),
	}}
	b := Aggregator{}.Aggregate(lines)
	if !b.TotalProfit.Equal(dec("58.08")) {
		t.Fatalf("total profit = %s, want 58.08", b.TotalProfit)
	}
	if !b.TotalRevenue.Equal(dec("199.50")) {
		t.Fatalf("total revenue = %s, want 199.50", b.TotalRevenue)
	}
}

func TestAggregateEmpty(t *testing.T) {
	b := Aggregator{}.Aggregate(nil)
	if !b.TotalProfit.IsZero() || !b.AverageMarginPercent.IsZero() {
		t.Fatalf("expected zero breakdown, got %+v", b)
	}
}

func TestAggregateZeroRevenueMargin(t *testing.T) {
	lines := []Line{{
		Quantity:          1,
		SellingPriceExVAT: decimal.Zero,
		ActualCost:        dec("1"),
		Profit:            dec("-1"),
		OriginalCost:      dec("1"),
	}}
	b := Aggregator{}.Aggregate(lines)
	if !b.AverageMarginPercent.IsZero() {
		t.Fatalf("zero revenue must yield zero margin, got %s", b.AverageMarginPercent)
	}
}
