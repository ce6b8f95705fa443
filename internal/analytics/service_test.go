package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/analytics"
	"github.com/noah-isme/backend-apotek/internal/db"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type stubQueries struct {
	lineCalls int
	topCalls  int
	lines     []db.SaleLineItem
}

func (s *stubQueries) ListSaleLineItemsBetween(_ context.Context, _, _ time.Time) ([]db.SaleLineItem, error) {
	s.lineCalls++
	return s.lines, nil
}

func (s *stubQueries) TopProductsByProfit(_ context.Context, _, _ time.Time, _ int32) ([]db.TopProductRow, error) {
	s.topCalls++
	return []db.TopProductRow{{
		ProductID:    uuid.New(),
		Name:         "Paracetamol 500mg",
		QuantitySold: 12,
		Revenue:      dec("1860"),
		Profit:       dec("524.64"),
	}}, nil
}

func newService(t *testing.T, queries *stubQueries) *analytics.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &analytics.Service{Q: queries, R: rdb, TTL: time.Minute, DefaultRange: 30}
}

func TestProfitReportAggregates(t *testing.T) {
	queries := &stubQueries{lines: []db.SaleLineItem{
		{
			Quantity:          1,
			SellingPriceExVAT: dec("133.00"),
			CostAtSale:        dec("90"),
			OriginalCost:      dec("100"),
			DiscountedCost:    decPtr("90"),
			RoundingExtra:     dec("0.72"),
			Profit:            dec("43.72"),
		},
		{
			Quantity:          1,
			SellingPriceExVAT: dec("66.50"),
			CostAtSale:        dec("50"),
			OriginalCost:      dec("50"),
			RoundingExtra:     dec("2.86"),
			Profit:            dec("19.36"),
		},
	}}
	svc := newService(t, queries)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.Profit(context.Background(), from, to)
	if err != nil {
		t.Fatalf("profit: %v", err)
	}

	if !report.TotalProfit.Equal(dec("63.08")) {
		t.Fatalf("total profit: got %s", report.TotalProfit)
	}
	if !report.RoundingProfit.Equal(dec("3.58")) {
		t.Fatalf("rounding profit: got %s", report.RoundingProfit)
	}
	if !report.DiscountProfit.Equal(dec("13.30")) {
		t.Fatalf("discount profit: got %s", report.DiscountProfit)
	}
	if !report.BaseProfit.Equal(dec("46.20")) {
		t.Fatalf("base profit: got %s", report.BaseProfit)
	}
	if report.LineCount != 2 {
		t.Fatalf("line count: got %d", report.LineCount)
	}
}

func TestProfitReportCached(t *testing.T) {
	queries := &stubQueries{}
	svc := newService(t, queries)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Profit(context.Background(), from, to); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.Profit(context.Background(), from, to); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if queries.lineCalls != 1 {
		t.Fatalf("expected 1 DB call, got %d", queries.lineCalls)
	}
}

func TestTopProductsCached(t *testing.T) {
	queries := &stubQueries{}
	svc := newService(t, queries)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows, err := svc.TopProducts(context.Background(), from, to, 10)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Paracetamol 500mg" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if _, err := svc.TopProducts(context.Background(), from, to, 10); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if queries.topCalls != 1 {
		t.Fatalf("expected 1 DB call, got %d", queries.topCalls)
	}
}
