package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateProductParams carries the fields for a new product master record.
type CreateProductParams struct {
	Name       string
	Category   string
	SupplierID *uuid.UUID
	MinStock   int64
	HasVAT     bool
}

const createProductSQL = `
INSERT INTO products (id, name, category, supplier_id, min_stock, has_vat)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, category, supplier_id, min_stock, has_vat, created_at, updated_at`

// CreateProduct inserts a product master record.
func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.conn.QueryRow(ctx, createProductSQL,
		uuid.New(), arg.Name, arg.Category, arg.SupplierID, arg.MinStock, arg.HasVAT)
	return scanProduct(row)
}

const getProductSQL = `
SELECT id, name, category, supplier_id, min_stock, has_vat, created_at, updated_at
FROM products
WHERE id = $1`

// GetProductByID fetches one product.
func (q *Queries) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.conn.QueryRow(ctx, getProductSQL, id))
}

const listProductsSQL = `
SELECT id, name, category, supplier_id, min_stock, has_vat, created_at, updated_at
FROM products
ORDER BY name
LIMIT $1 OFFSET $2`

// ListProducts returns products ordered by name.
func (q *Queries) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := q.conn.Query(ctx, listProductsSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var result []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// CountProducts returns the total product count.
func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := q.conn.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

// UpdateProductParams covers the descriptive fields that stay mutable after
// batches reference the product.
type UpdateProductParams struct {
	ID       uuid.UUID
	Name     string
	Category string
	MinStock int64
}

const updateProductSQL = `
UPDATE products
SET name = $2, category = $3, min_stock = $4, updated_at = now()
WHERE id = $1
RETURNING id, name, category, supplier_id, min_stock, has_vat, created_at, updated_at`

// UpdateProduct updates descriptive fields only; the VAT flag and identity
// are fixed once batches exist.
func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.conn.QueryRow(ctx, updateProductSQL, arg.ID, arg.Name, arg.Category, arg.MinStock)
	return scanProduct(row)
}

const listLowStockSQL = `
SELECT p.id, p.name, p.category, p.min_stock,
       COALESCE(SUM(m.quantity), 0) AS current_stock
FROM products p
LEFT JOIN product_batches b ON b.product_id = p.id
LEFT JOIN stock_movements m ON m.batch_id = b.id
GROUP BY p.id, p.name, p.category, p.min_stock
HAVING COALESCE(SUM(m.quantity), 0) <= p.min_stock
ORDER BY current_stock, p.name`

// ListLowStockProducts returns products whose derived stock across all
// batches is at or below their minimum threshold.
func (q *Queries) ListLowStockProducts(ctx context.Context) ([]LowStockRow, error) {
	rows, err := q.conn.Query(ctx, listLowStockSQL)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()
	var result []LowStockRow
	for rows.Next() {
		var r LowStockRow
		if err := rows.Scan(&r.ProductID, &r.Name, &r.Category, &r.MinStock, &r.CurrentStock); err != nil {
			return nil, fmt.Errorf("scan low stock row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const productStockSQL = `
SELECT p.min_stock, COALESCE(SUM(m.quantity), 0) AS current_stock
FROM products p
LEFT JOIN product_batches b ON b.product_id = p.id
LEFT JOIN stock_movements m ON m.batch_id = b.id
WHERE p.id = $1
GROUP BY p.min_stock`

// GetProductStock derives a product's total stock across batches together
// with its reorder threshold.
func (q *Queries) GetProductStock(ctx context.Context, id uuid.UUID) (minStock, currentStock int64, err error) {
	err = q.conn.QueryRow(ctx, productStockSQL, id).Scan(&minStock, &currentStock)
	return minStock, currentStock, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.SupplierID, &p.MinStock, &p.HasVAT, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}
