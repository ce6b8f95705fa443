// Package analytics serves time-windowed profit reports derived from sale
// line item snapshots, with a redis read-through cache in front of the
// aggregation.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/profit"
)

// Querier defines the database access required for analytics operations.
type Querier interface {
	ListSaleLineItemsBetween(ctx context.Context, from, to time.Time) ([]db.SaleLineItem, error)
	TopProductsByProfit(ctx context.Context, from, to time.Time, limit int32) ([]db.TopProductRow, error)
}

// Service provides cached profit reporting over the sale ledger.
type Service struct {
	Q            Querier
	R            *redis.Client
	Agg          profit.Aggregator
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

// ProfitReport is the profit decomposition for a [from, to) window.
type ProfitReport struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	profit.Breakdown
}

// TopProduct is one entry of the top-products listing.
type TopProduct struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantitySold"`
	Revenue      decimal.Decimal `json:"revenue"`
	Profit       decimal.Decimal `json:"profit"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Profit aggregates sold line items between the bounds, inclusive of from
// and exclusive of to.
func (s *Service) Profit(ctx context.Context, from, to time.Time) (ProfitReport, error) {
	if s == nil || s.Q == nil {
		return ProfitReport{}, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "profit", from.Format(time.RFC3339), to.Format(time.RFC3339))
	if report, ok := s.getProfitFromCache(ctx, key); ok {
		return report, nil
	}
	rows, err := s.Q.ListSaleLineItemsBetween(ctx, from, to)
	if err != nil {
		return ProfitReport{}, err
	}
	lines := make([]profit.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, profit.Line{
			Quantity:          row.Quantity,
			SellingPriceExVAT: row.SellingPriceExVAT,
			ActualCost:        row.CostAtSale,
			RoundingExtra:     row.RoundingExtra,
			Profit:            row.Profit,
			OriginalCost:      row.OriginalCost,
			DiscountedCost:    row.DiscountedCost,
		})
	}
	report := ProfitReport{From: from, To: to, Breakdown: s.Agg.Aggregate(lines)}
	s.store(ctx, key, report)
	return report, nil
}

// TopProducts returns products ranked by total profit within the window.
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int32) ([]TopProduct, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	key := cacheKey("an", "top", from.Format(time.RFC3339), to.Format(time.RFC3339), limit)
	if rows, ok := s.getTopFromCache(ctx, key); ok {
		return rows, nil
	}
	rows, err := s.Q.TopProductsByProfit(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	result := make([]TopProduct, 0, len(rows))
	for _, row := range rows {
		result = append(result, TopProduct{
			ProductID:    row.ProductID.String(),
			Name:         row.Name,
			QuantitySold: row.QuantitySold,
			Revenue:      row.Revenue,
			Profit:       row.Profit,
		})
	}
	s.store(ctx, key, result)
	return result, nil
}

func (s *Service) getProfitFromCache(ctx context.Context, key string) (ProfitReport, bool) {
	if s.R == nil || s.TTL <= 0 {
		return ProfitReport{}, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return ProfitReport{}, false
	}
	var report ProfitReport
	if err := json.Unmarshal(data, &report); err != nil {
		return ProfitReport{}, false
	}
	return report, true
}

func (s *Service) getTopFromCache(ctx context.Context, key string) ([]TopProduct, bool) {
	if s.R == nil || s.TTL <= 0 {
		return nil, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []TopProduct
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
