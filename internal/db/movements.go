package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Movement type values stored in stock_movements.movement_type.
const (
	MovementPurchase   = "purchase"
	MovementSale       = "sale"
	MovementAdjustment = "adjustment"
)

// InsertMovementParams carries one ledger entry. Entries are append-only:
// there is no update or delete query for stock_movements.
type InsertMovementParams struct {
	BatchID       uuid.UUID
	MovementType  string
	Quantity      int64
	ReferenceType string
	ReferenceID   uuid.UUID
	Notes         *string
	Actor         string
}

const insertMovementSQL = `
INSERT INTO stock_movements (id, batch_id, movement_type, quantity, reference_type, reference_id, notes, actor)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, batch_id, movement_type, quantity, reference_type, reference_id, notes, actor, created_at`

// InsertMovement appends one movement. The non-negative-stock trigger on the
// table rejects the insert when it would drive the batch aggregate below
// zero.
func (q *Queries) InsertMovement(ctx context.Context, arg InsertMovementParams) (StockMovement, error) {
	row := q.conn.QueryRow(ctx, insertMovementSQL,
		uuid.New(), arg.BatchID, arg.MovementType, arg.Quantity,
		arg.ReferenceType, arg.ReferenceID, arg.Notes, arg.Actor)
	return scanMovement(row)
}

// SumMovementsByBatch derives the current stock of a batch. This is the only
// source of truth for stock; no counter column exists.
func (q *Queries) SumMovementsByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var total int64
	err := q.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE batch_id = $1`,
		batchID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum movements: %w", err)
	}
	return total, nil
}

const listMovementsSQL = `
SELECT id, batch_id, movement_type, quantity, reference_type, reference_id, notes, actor, created_at
FROM stock_movements
WHERE batch_id = $1
ORDER BY created_at, id`

// ListMovementsByBatch returns the full ledger of a batch in append order.
func (q *Queries) ListMovementsByBatch(ctx context.Context, batchID uuid.UUID) ([]StockMovement, error) {
	rows, err := q.conn.Query(ctx, listMovementsSQL, batchID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var result []StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanMovement(row rowScanner) (StockMovement, error) {
	var m StockMovement
	err := row.Scan(&m.ID, &m.BatchID, &m.MovementType, &m.Quantity,
		&m.ReferenceType, &m.ReferenceID, &m.Notes, &m.Actor, &m.CreatedAt)
	if err != nil {
		return StockMovement{}, err
	}
	return m, nil
}
