// Package ledger implements the append-only stock movement ledger. Stock is
// never stored as a counter: the current stock of a batch is always the sum
// of its movement quantities, and any operation that would drive that sum
// negative is rejected before anything is written.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/obs"
)

var (
	// ErrInsufficientStock is returned when a movement would drive a batch
	// below zero derived stock.
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
	// ErrNonPositiveQuantity is returned when a purchase or sale quantity is
	// zero or negative.
	ErrNonPositiveQuantity = errors.New("ledger: quantity must be positive")
	// ErrZeroDelta is returned when an adjustment changes nothing.
	ErrZeroDelta = errors.New("ledger: adjustment delta is zero")
	// ErrNoBatchAvailable is returned when no single batch can satisfy the
	// requested quantity. Sales are never split across batches: splitting
	// would change cost-at-sale attribution.
	ErrNoBatchAvailable = errors.New("ledger: no batch with sufficient stock")
)

// InsufficientStockError carries the context the operator needs when a
// movement is rejected.
type InsufficientStockError struct {
	BatchID   uuid.UUID
	Requested int64
	Available int64
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	return "ledger: insufficient stock for batch " + e.BatchID.String() +
		": requested " + strconv.FormatInt(e.Requested, 10) +
		", available " + strconv.FormatInt(e.Available, 10)
}

// Unwrap allows errors.Is checks against ErrInsufficientStock.
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Reference identifies the transaction that caused a movement.
type Reference struct {
	Type string
	ID   uuid.UUID
}

// Store is the persistence surface the ledger needs. LockBatch must hold a
// lock on the batch until the surrounding transaction commits; the advisory
// Locker alone is not enough because it is released before commit, when the
// appended movement is not yet visible to other transactions.
type Store interface {
	LockBatch(ctx context.Context, batchID uuid.UUID) error
	InsertMovement(ctx context.Context, arg db.InsertMovementParams) (db.StockMovement, error)
	SumMovementsByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	ListAvailableBatchesFIFO(ctx context.Context, productID uuid.UUID) ([]db.BatchWithStock, error)
	ListMovementsByBatch(ctx context.Context, batchID uuid.UUID) ([]db.StockMovement, error)
}

// Locker serializes stock-reducing operations per batch so the stock check
// and the movement append act as one step.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service records stock movements and derives current stock.
//
// Reducing movements run under two locks. The Store row lock on the batch is
// the correctness lock: it is held until the transaction commits, so two
// reductions on one batch serialize even though each only sees committed
// movements. The optional advisory Locker fails contending requests fast
// instead of queueing them on the row. The stock_movements table additionally
// carries a commit-time trigger that rejects a negative aggregate; the
// database rejection is mapped back to ErrInsufficientStock.
type Service struct {
	Store    Store
	Locker   Locker
	LockTTL  time.Duration
	Notifier MovementNotifier
}

// MovementNotifier observes accepted movements (event emission, metrics).
type MovementNotifier interface {
	MovementRecorded(ctx context.Context, movement db.StockMovement, stockAfter int64)
}

// BatchLockKey returns the lock key serializing operations on one batch.
func BatchLockKey(batchID uuid.UUID) string {
	return "ledger:batch:" + batchID.String()
}

// CurrentStock derives the stock of a batch from its movements.
func (s *Service) CurrentStock(ctx context.Context, batchID uuid.UUID) (int64, error) {
	return s.Store.SumMovementsByBatch(ctx, batchID)
}

// Movements returns the full ledger of a batch in append order.
func (s *Service) Movements(ctx context.Context, batchID uuid.UUID) ([]db.StockMovement, error) {
	return s.Store.ListMovementsByBatch(ctx, batchID)
}

// RecordPurchase appends a purchase movement. Purchases only add stock, so
// no lock or stock check is needed.
func (s *Service) RecordPurchase(ctx context.Context, batchID uuid.UUID, quantity int64, ref Reference, actor string) (db.StockMovement, error) {
	if quantity <= 0 {
		return db.StockMovement{}, ErrNonPositiveQuantity
	}
	return s.append(ctx, db.InsertMovementParams{
		BatchID:       batchID,
		MovementType:  db.MovementPurchase,
		Quantity:      quantity,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Actor:         actor,
	})
}

// RecordSale appends a sale movement with negative quantity after verifying
// the batch holds enough stock. Check and append run under the batch lock.
func (s *Service) RecordSale(ctx context.Context, batchID uuid.UUID, quantity int64, ref Reference, actor string) (db.StockMovement, error) {
	if quantity <= 0 {
		return db.StockMovement{}, ErrNonPositiveQuantity
	}
	return s.reduce(ctx, batchID, db.InsertMovementParams{
		BatchID:       batchID,
		MovementType:  db.MovementSale,
		Quantity:      -quantity,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Actor:         actor,
	})
}

// RecordAdjustment appends a stock-take correction. Negative deltas are
// guarded the same way as sales; positive deltas always succeed.
func (s *Service) RecordAdjustment(ctx context.Context, batchID uuid.UUID, delta int64, ref Reference, actor, notes string) (db.StockMovement, error) {
	if delta == 0 {
		return db.StockMovement{}, ErrZeroDelta
	}
	params := db.InsertMovementParams{
		BatchID:       batchID,
		MovementType:  db.MovementAdjustment,
		Quantity:      delta,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Actor:         actor,
	}
	if notes != "" {
		params.Notes = &notes
	}
	if delta > 0 {
		return s.append(ctx, params)
	}
	return s.reduce(ctx, batchID, params)
}

// SelectBatchFIFO picks the batch a sale of the given quantity should draw
// from: nearest expiry first (no expiry last), then oldest received, first
// batch with sufficient remaining stock. A sale is never split across
// batches; when no single batch suffices the selection fails.
func (s *Service) SelectBatchFIFO(ctx context.Context, productID uuid.UUID, quantity int64) (db.BatchWithStock, error) {
	if quantity <= 0 {
		return db.BatchWithStock{}, ErrNonPositiveQuantity
	}
	candidates, err := s.Store.ListAvailableBatchesFIFO(ctx, productID)
	if err != nil {
		return db.BatchWithStock{}, fmt.Errorf("list candidate batches: %w", err)
	}
	for _, batch := range candidates {
		if batch.CurrentStock >= quantity {
			return batch, nil
		}
	}
	return db.BatchWithStock{}, ErrNoBatchAvailable
}

func (s *Service) reduce(ctx context.Context, batchID uuid.UUID, params db.InsertMovementParams) (db.StockMovement, error) {
	var movement db.StockMovement
	work := func(ctx context.Context) error {
		// Row lock first. It outlives the advisory lock: it is held until
		// the transaction commits, so a concurrent reduction can not derive
		// stock from a snapshot that misses this movement.
		if err := s.Store.LockBatch(ctx, batchID); err != nil {
			return err
		}
		available, err := s.Store.SumMovementsByBatch(ctx, batchID)
		if err != nil {
			return fmt.Errorf("derive stock: %w", err)
		}
		requested := -params.Quantity
		if requested > available {
			return &InsufficientStockError{BatchID: batchID, Requested: requested, Available: available}
		}
		movement, err = s.appendChecked(ctx, params, available)
		return err
	}
	if s.Locker == nil {
		if err := work(ctx); err != nil {
			return db.StockMovement{}, err
		}
		return movement, nil
	}
	if err := s.Locker.WithLock(ctx, BatchLockKey(batchID), s.lockTTL(), work); err != nil {
		return db.StockMovement{}, err
	}
	return movement, nil
}

func (s *Service) append(ctx context.Context, params db.InsertMovementParams) (db.StockMovement, error) {
	available, err := s.Store.SumMovementsByBatch(ctx, params.BatchID)
	if err != nil {
		return db.StockMovement{}, fmt.Errorf("derive stock: %w", err)
	}
	return s.appendChecked(ctx, params, available)
}

func (s *Service) appendChecked(ctx context.Context, params db.InsertMovementParams, before int64) (db.StockMovement, error) {
	movement, err := s.Store.InsertMovement(ctx, params)
	if err != nil {
		return db.StockMovement{}, mapConstraintError(err, params, before)
	}
	obs.IncMovement(movement.MovementType)
	if s.Notifier != nil {
		s.Notifier.MovementRecorded(ctx, movement, before+params.Quantity)
	}
	return movement, nil
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

// mapConstraintError converts the database-side non-negative-stock rejection
// into the domain error callers already handle.
func mapConstraintError(err error, params db.InsertMovementParams, available int64) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return &InsufficientStockError{
			BatchID:   params.BatchID,
			Requested: -params.Quantity,
			Available: available,
		}
	}
	return fmt.Errorf("append movement: %w", err)
}
