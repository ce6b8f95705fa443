package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateSaleParams carries the header of a completed sale. ID is generated
// by the caller: movements and line items written in the same transaction
// reference the sale before the header row exists.
type CreateSaleParams struct {
	ID            uuid.UUID
	ReceiptNumber string
	TotalAmount   decimal.Decimal
	CreatedBy     string
}

const createSaleSQL = `
INSERT INTO sales (id, receipt_number, total_amount, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id, receipt_number, total_amount, created_by, created_at`

// CreateSale inserts a sale header.
func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	if arg.ID == uuid.Nil {
		arg.ID = uuid.New()
	}
	var s Sale
	err := q.conn.QueryRow(ctx, createSaleSQL,
		arg.ID, arg.ReceiptNumber, arg.TotalAmount, arg.CreatedBy).
		Scan(&s.ID, &s.ReceiptNumber, &s.TotalAmount, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		return Sale{}, fmt.Errorf("create sale: %w", err)
	}
	return s, nil
}

// CreateSaleLineItemParams snapshots all pricing and cost fields at the
// moment of sale; the row is immutable afterwards.
type CreateSaleLineItemParams struct {
	SaleID            uuid.UUID
	BatchID           uuid.UUID
	Quantity          int64
	PriceTier         string
	SellingPriceExVAT decimal.Decimal
	VATAmount         decimal.Decimal
	RoundingExtra     decimal.Decimal
	FinalPrice        decimal.Decimal
	CostAtSale        decimal.Decimal
	OriginalCost      decimal.Decimal
	DiscountedCost    *decimal.Decimal
	Profit            decimal.Decimal
}

const createSaleLineItemSQL = `
INSERT INTO sale_line_items (
	id, sale_id, batch_id, quantity, price_tier,
	selling_price_ex_vat, vat_amount, rounding_extra, final_price,
	cost_at_sale, original_cost, discounted_cost, profit
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, sale_id, batch_id, quantity, price_tier,
	selling_price_ex_vat, vat_amount, rounding_extra, final_price,
	cost_at_sale, original_cost, discounted_cost, profit, created_at`

// CreateSaleLineItem inserts one sold line.
func (q *Queries) CreateSaleLineItem(ctx context.Context, arg CreateSaleLineItemParams) (SaleLineItem, error) {
	row := q.conn.QueryRow(ctx, createSaleLineItemSQL,
		uuid.New(), arg.SaleID, arg.BatchID, arg.Quantity, arg.PriceTier,
		arg.SellingPriceExVAT, arg.VATAmount, arg.RoundingExtra, arg.FinalPrice,
		arg.CostAtSale, arg.OriginalCost, arg.DiscountedCost, arg.Profit)
	return scanSaleLineItem(row)
}

const listSaleLineItemsBetweenSQL = `
SELECT id, sale_id, batch_id, quantity, price_tier,
	selling_price_ex_vat, vat_amount, rounding_extra, final_price,
	cost_at_sale, original_cost, discounted_cost, profit, created_at
FROM sale_line_items
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at, id`

// ListSaleLineItemsBetween returns line items sold in [from, to).
func (q *Queries) ListSaleLineItemsBetween(ctx context.Context, from, to time.Time) ([]SaleLineItem, error) {
	rows, err := q.conn.Query(ctx, listSaleLineItemsBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sale line items: %w", err)
	}
	defer rows.Close()
	var result []SaleLineItem
	for rows.Next() {
		item, err := scanSaleLineItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

const topProductsByProfitSQL = `
SELECT p.id, p.name,
	COALESCE(SUM(li.quantity), 0) AS quantity_sold,
	COALESCE(SUM(li.selling_price_ex_vat * li.quantity), 0) AS revenue,
	COALESCE(SUM(li.profit * li.quantity), 0) AS profit
FROM sale_line_items li
JOIN product_batches b ON b.id = li.batch_id
JOIN products p ON p.id = b.product_id
WHERE li.created_at >= $1 AND li.created_at < $2
GROUP BY p.id, p.name
ORDER BY profit DESC
LIMIT $3`

// TopProductsByProfit aggregates sold quantity, revenue, and profit per
// product for the window [from, to), most profitable first.
func (q *Queries) TopProductsByProfit(ctx context.Context, from, to time.Time, limit int32) ([]TopProductRow, error) {
	rows, err := q.conn.Query(ctx, topProductsByProfitSQL, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()
	var result []TopProductRow
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductID, &r.Name, &r.QuantitySold, &r.Revenue, &r.Profit); err != nil {
			return nil, fmt.Errorf("scan top product row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanSaleLineItem(row rowScanner) (SaleLineItem, error) {
	var li SaleLineItem
	err := row.Scan(&li.ID, &li.SaleID, &li.BatchID, &li.Quantity, &li.PriceTier,
		&li.SellingPriceExVAT, &li.VATAmount, &li.RoundingExtra, &li.FinalPrice,
		&li.CostAtSale, &li.OriginalCost, &li.DiscountedCost, &li.Profit, &li.CreatedAt)
	if err != nil {
		return SaleLineItem{}, err
	}
	return li, nil
}
