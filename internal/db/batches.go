package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBatchParams carries all fields of a new batch. Cost and price columns
// are written once here and never updated.
type CreateBatchParams struct {
	ProductID         uuid.UUID
	SupplierID        *uuid.UUID
	PurchaseInvoiceID uuid.UUID
	BatchNumber       string
	ExpiryDate        *time.Time
	OriginalCost      decimal.Decimal
	DiscountPercent   *decimal.Decimal
	DiscountedCost    *decimal.Decimal
	VATRate           decimal.Decimal
	HasVAT            bool
	MinimumPriceExVAT *decimal.Decimal
	MinimumPriceFinal *decimal.Decimal
	TargetPriceExVAT  decimal.Decimal
	TargetPriceFinal  decimal.Decimal
	QuantityReceived  int64
}

const createBatchSQL = `
INSERT INTO product_batches (
	id, product_id, supplier_id, purchase_invoice_id, batch_number, expiry_date,
	original_cost, discount_percent, discounted_cost, vat_rate, has_vat,
	minimum_price_ex_vat, minimum_price_final, target_price_ex_vat, target_price_final,
	quantity_received
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + batchColumns

const batchColumns = `id, product_id, supplier_id, purchase_invoice_id, batch_number, expiry_date,
	original_cost, discount_percent, discounted_cost, vat_rate, has_vat,
	minimum_price_ex_vat, minimum_price_final, target_price_ex_vat, target_price_final,
	quantity_received, received_at`

// CreateBatch inserts a batch with its full pricing breakdown.
func (q *Queries) CreateBatch(ctx context.Context, arg CreateBatchParams) (ProductBatch, error) {
	row := q.conn.QueryRow(ctx, createBatchSQL,
		uuid.New(), arg.ProductID, arg.SupplierID, arg.PurchaseInvoiceID, arg.BatchNumber, arg.ExpiryDate,
		arg.OriginalCost, arg.DiscountPercent, arg.DiscountedCost, arg.VATRate, arg.HasVAT,
		arg.MinimumPriceExVAT, arg.MinimumPriceFinal, arg.TargetPriceExVAT, arg.TargetPriceFinal,
		arg.QuantityReceived)
	return scanBatch(row)
}

const getBatchSQL = `
SELECT ` + batchColumns + `
FROM product_batches
WHERE id = $1`

// GetBatchByID fetches one batch.
func (q *Queries) GetBatchByID(ctx context.Context, id uuid.UUID) (ProductBatch, error) {
	return scanBatch(q.conn.QueryRow(ctx, getBatchSQL, id))
}

// LockBatch takes a row lock on the batch for the rest of the current
// transaction. Reducing movements lock the batch before deriving stock so
// the check-then-append sequence stays serialized until commit, not just
// until the advisory lock is released.
func (q *Queries) LockBatch(ctx context.Context, id uuid.UUID) error {
	_, err := q.conn.Exec(ctx, `SELECT id FROM product_batches WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}
	return nil
}

const listBatchesByProductSQL = `
SELECT b.id, b.product_id, b.supplier_id, b.purchase_invoice_id, b.batch_number, b.expiry_date,
	b.original_cost, b.discount_percent, b.discounted_cost, b.vat_rate, b.has_vat,
	b.minimum_price_ex_vat, b.minimum_price_final, b.target_price_ex_vat, b.target_price_final,
	b.quantity_received, b.received_at,
	COALESCE(SUM(m.quantity), 0) AS current_stock
FROM product_batches b
LEFT JOIN stock_movements m ON m.batch_id = b.id
WHERE b.product_id = $1
GROUP BY b.id
ORDER BY b.expiry_date ASC NULLS LAST, b.received_at ASC`

// ListBatchesByProduct returns all batches of a product with derived stock,
// in FIFO order. Exhausted batches stay listed for audit.
func (q *Queries) ListBatchesByProduct(ctx context.Context, productID uuid.UUID) ([]BatchWithStock, error) {
	rows, err := q.conn.Query(ctx, listBatchesByProductSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	var result []BatchWithStock
	for rows.Next() {
		b, err := scanBatchWithStock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

const listAvailableBatchesSQL = `
SELECT b.id, b.product_id, b.supplier_id, b.purchase_invoice_id, b.batch_number, b.expiry_date,
	b.original_cost, b.discount_percent, b.discounted_cost, b.vat_rate, b.has_vat,
	b.minimum_price_ex_vat, b.minimum_price_final, b.target_price_ex_vat, b.target_price_final,
	b.quantity_received, b.received_at,
	COALESCE(SUM(m.quantity), 0) AS current_stock
FROM product_batches b
LEFT JOIN stock_movements m ON m.batch_id = b.id
WHERE b.product_id = $1
GROUP BY b.id
HAVING COALESCE(SUM(m.quantity), 0) > 0
ORDER BY b.expiry_date ASC NULLS LAST, b.received_at ASC`

// ListAvailableBatchesFIFO returns batches with remaining stock in FIFO
// order: nearest expiry first (batches without expiry last), then oldest
// received.
func (q *Queries) ListAvailableBatchesFIFO(ctx context.Context, productID uuid.UUID) ([]BatchWithStock, error) {
	rows, err := q.conn.Query(ctx, listAvailableBatchesSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("list available batches: %w", err)
	}
	defer rows.Close()
	var result []BatchWithStock
	for rows.Next() {
		b, err := scanBatchWithStock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

const listExpiringBatchesSQL = `
SELECT b.id, b.product_id, b.supplier_id, b.purchase_invoice_id, b.batch_number, b.expiry_date,
	b.original_cost, b.discount_percent, b.discounted_cost, b.vat_rate, b.has_vat,
	b.minimum_price_ex_vat, b.minimum_price_final, b.target_price_ex_vat, b.target_price_final,
	b.quantity_received, b.received_at,
	COALESCE(SUM(m.quantity), 0) AS current_stock
FROM product_batches b
LEFT JOIN stock_movements m ON m.batch_id = b.id
WHERE b.expiry_date IS NOT NULL AND b.expiry_date <= $1
GROUP BY b.id
HAVING COALESCE(SUM(m.quantity), 0) > 0
ORDER BY b.expiry_date ASC`

// ListExpiringBatches returns batches with remaining stock whose expiry date
// falls on or before the cutoff. Already exhausted batches are skipped.
func (q *Queries) ListExpiringBatches(ctx context.Context, cutoff time.Time) ([]BatchWithStock, error) {
	rows, err := q.conn.Query(ctx, listExpiringBatchesSQL, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expiring batches: %w", err)
	}
	defer rows.Close()
	var result []BatchWithStock
	for rows.Next() {
		b, err := scanBatchWithStock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func scanBatch(row rowScanner) (ProductBatch, error) {
	var b ProductBatch
	err := row.Scan(
		&b.ID, &b.ProductID, &b.SupplierID, &b.PurchaseInvoiceID, &b.BatchNumber, &b.ExpiryDate,
		&b.OriginalCost, &b.DiscountPercent, &b.DiscountedCost, &b.VATRate, &b.HasVAT,
		&b.MinimumPriceExVAT, &b.MinimumPriceFinal, &b.TargetPriceExVAT, &b.TargetPriceFinal,
		&b.QuantityReceived, &b.ReceivedAt)
	if err != nil {
		return ProductBatch{}, err
	}
	return b, nil
}

func scanBatchWithStock(row rowScanner) (BatchWithStock, error) {
	var b BatchWithStock
	err := row.Scan(
		&b.ID, &b.ProductID, &b.SupplierID, &b.PurchaseInvoiceID, &b.BatchNumber, &b.ExpiryDate,
		&b.OriginalCost, &b.DiscountPercent, &b.DiscountedCost, &b.VATRate, &b.HasVAT,
		&b.MinimumPriceExVAT, &b.MinimumPriceFinal, &b.TargetPriceExVAT, &b.TargetPriceFinal,
		&b.QuantityReceived, &b.ReceivedAt, &b.CurrentStock)
	if err != nil {
		return BatchWithStock{}, fmt.Errorf("scan batch with stock: %w", err)
	}
	return b, nil
}
