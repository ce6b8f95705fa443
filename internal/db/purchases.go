package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateSupplier inserts a supplier master record.
func (q *Queries) CreateSupplier(ctx context.Context, name string) (Supplier, error) {
	var s Supplier
	err := q.conn.QueryRow(ctx,
		`INSERT INTO suppliers (id, name) VALUES ($1, $2) RETURNING id, name, created_at`,
		uuid.New(), name).Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err != nil {
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return s, nil
}

// ListSuppliers returns all suppliers ordered by name.
func (q *Queries) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := q.conn.Query(ctx, `SELECT id, name, created_at FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()
	var result []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// CreatePurchaseInvoiceParams carries the header of a supplier delivery.
type CreatePurchaseInvoiceParams struct {
	SupplierID    uuid.UUID
	InvoiceNumber string
	CreatedBy     string
}

const createPurchaseInvoiceSQL = `
INSERT INTO purchase_invoices (id, supplier_id, invoice_number, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id, supplier_id, invoice_number, created_by, created_at`

// CreatePurchaseInvoice inserts a purchase invoice header.
func (q *Queries) CreatePurchaseInvoice(ctx context.Context, arg CreatePurchaseInvoiceParams) (PurchaseInvoice, error) {
	var inv PurchaseInvoice
	err := q.conn.QueryRow(ctx, createPurchaseInvoiceSQL,
		uuid.New(), arg.SupplierID, arg.InvoiceNumber, arg.CreatedBy).
		Scan(&inv.ID, &inv.SupplierID, &inv.InvoiceNumber, &inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		return PurchaseInvoice{}, fmt.Errorf("create purchase invoice: %w", err)
	}
	return inv, nil
}
