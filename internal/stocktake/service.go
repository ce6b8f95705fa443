// Package stocktake reconciles physically counted quantities against the
// derived ledger stock by appending adjustment movements.
package stocktake

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-apotek/internal/common"
	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
	"github.com/noah-isme/backend-apotek/internal/ledger"
)

// Service applies stock-take reconciliations.
type Service struct {
	pool     *pgxpool.Pool
	queries  *db.Queries
	locker   ledger.Locker
	lockTTL  time.Duration
	bus      *events.Bus
	log      zerolog.Logger
	validate *validator.Validate
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Pool    *pgxpool.Pool
	Queries *db.Queries
	Locker  ledger.Locker
	LockTTL time.Duration
	Bus     *events.Bus
	Logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Pool == nil {
		return nil, errors.New("stocktake: pgx pool is required")
	}
	if cfg.Queries == nil {
		return nil, errors.New("stocktake: queries are required")
	}
	return &Service{
		pool:     cfg.Pool,
		queries:  cfg.Queries,
		locker:   cfg.Locker,
		lockTTL:  cfg.LockTTL,
		bus:      cfg.Bus,
		log:      cfg.Logger,
		validate: validator.New(),
	}, nil
}

// CountInput is one counted batch.
type CountInput struct {
	BatchID    string `json:"batchId" validate:"required,uuid"`
	CountedQty int64  `json:"countedQty" validate:"gte=0"`
}

// TakeInput is the stock-take DTO.
type TakeInput struct {
	Notes  string       `json:"notes" validate:"max=500"`
	Counts []CountInput `json:"counts" validate:"required,min=1,dive"`
}

// CountResult reports the reconciliation of one batch.
type CountResult struct {
	BatchID    string `json:"batchId"`
	Previous   int64  `json:"previous"`
	CountedQty int64  `json:"countedQty"`
	Delta      int64  `json:"delta"`
	Adjusted   bool   `json:"adjusted"`
}

// TakeResult is the reconciliation report.
type TakeResult struct {
	StockTakeID string        `json:"stockTakeId"`
	AppliedAt   time.Time     `json:"appliedAt"`
	Counts      []CountResult `json:"counts"`
}

// Apply reconciles counted quantities in one transaction. Batches whose
// count matches the derived stock get no movement; every other batch gets
// exactly one adjustment carrying the delta.
func (s *Service) Apply(ctx context.Context, input TakeInput, actor string) (TakeResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return TakeResult{}, validationError(err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TakeResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	qtx := s.queries.WithTx(tx)
	collector := &events.MovementCollector{}
	led := &ledger.Service{Store: qtx, Locker: s.locker, LockTTL: s.lockTTL, Notifier: collector}

	takeID := uuid.New()
	notes := input.Notes
	if notes == "" {
		notes = "stock take"
	}

	results := make([]CountResult, 0, len(input.Counts))
	for i, count := range input.Counts {
		batchID, err := uuid.Parse(count.BatchID)
		if err != nil {
			return TakeResult{}, badRequest(fmt.Sprintf("counts[%d].batchId", i), "batchId must be a valid uuid", err)
		}
		if _, err := qtx.GetBatchByID(ctx, batchID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return TakeResult{}, &common.AppError{
					Code:       "NOT_FOUND",
					Message:    "batch not found",
					HTTPStatus: http.StatusNotFound,
					Err:        err,
					Details:    map[string]any{"field": fmt.Sprintf("counts[%d].batchId", i)},
				}
			}
			return TakeResult{}, fmt.Errorf("get batch: %w", err)
		}
		previous, err := led.CurrentStock(ctx, batchID)
		if err != nil {
			return TakeResult{}, fmt.Errorf("derive stock: %w", err)
		}
		delta := count.CountedQty - previous
		result := CountResult{
			BatchID:    batchID.String(),
			Previous:   previous,
			CountedQty: count.CountedQty,
			Delta:      delta,
		}
		if delta != 0 {
			if _, err := led.RecordAdjustment(ctx, batchID, delta,
				ledger.Reference{Type: "stock_take", ID: takeID}, actor, notes); err != nil {
				return TakeResult{}, fmt.Errorf("record adjustment: %w", err)
			}
			result.Adjusted = true
		}
		results = append(results, result)
	}

	if err := tx.Commit(ctx); err != nil {
		return TakeResult{}, fmt.Errorf("commit: %w", err)
	}

	collector.Flush(ctx, s.bus, s.log)
	if s.bus != nil {
		if _, err := s.bus.Emit(ctx, events.TopicStockTakeApplied, takeID, map[string]any{
			"stockTakeId": takeID.String(),
			"batchCount":  len(results),
		}); err != nil {
			s.log.Warn().Err(err).Str("stock_take_id", takeID.String()).Msg("emit stock_take.applied")
		}
	}

	return TakeResult{
		StockTakeID: takeID.String(),
		AppliedAt:   time.Now().UTC(),
		Counts:      results,
	}, nil
}

func validationError(err error) *common.AppError {
	details := map[string]any{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[fe.Namespace()] = fe.Tag()
		}
	}
	return &common.AppError{
		Code:       "VALIDATION",
		Message:    "invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    details,
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "VALIDATION",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}
