// Package sale implements the point-of-sale checkout workflow: FIFO batch
// selection, floor-price enforcement, pricing, and the paired line-item plus
// ledger movement, all inside one transaction.
package sale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/common"
	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
	"github.com/noah-isme/backend-apotek/internal/ledger"
	"github.com/noah-isme/backend-apotek/internal/obs"
	"github.com/noah-isme/backend-apotek/internal/pricing"
)

// Service runs the checkout workflow.
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
		return nil, errors.New("sale: pgx pool is required")
	}
	if cfg.Queries == nil {
		return nil, errors.New("sale: queries are required")
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

// LineInput is one requested sale line. SellingPriceExVAT is optional: when
// absent the chosen tier's stored ex-VAT price applies.
type LineInput struct {
	ProductID         string           `json:"productId" validate:"required,uuid"`
	Quantity          int64            `json:"quantity" validate:"required,gt=0"`
	PriceTier         string           `json:"priceTier" validate:"required,oneof=MINIMUM TARGET"`
	SellingPriceExVAT *decimal.Decimal `json:"sellingPriceExVat"`
}

// CheckoutInput is the sale DTO.
type CheckoutInput struct {
	Lines []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// LineResult is the computed outcome of one sold line.
type LineResult struct {
	BatchID           string          `json:"batchId"`
	BatchNumber       string          `json:"batchNumber"`
	ProductID         string          `json:"productId"`
	Quantity          int64           `json:"quantity"`
	PriceTier         string          `json:"priceTier"`
	SellingPriceExVAT decimal.Decimal `json:"sellingPriceExVat"`
	VATAmount         decimal.Decimal `json:"vatAmount"`
	FinalPrice        decimal.Decimal `json:"finalPrice"`
	RoundingExtra     decimal.Decimal `json:"roundingExtra"`
	Profit            decimal.Decimal `json:"profit"`
	LineTotal         decimal.Decimal `json:"lineTotal"`
}

// CheckoutResult is returned after a committed sale.
type CheckoutResult struct {
	SaleID        string          `json:"saleId"`
	ReceiptNumber string          `json:"receiptNumber"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CreatedAt     time.Time       `json:"createdAt"`
	Lines         []LineResult    `json:"lines"`
}

// Checkout processes a sale atomically. Every line picks its batch FIFO,
// passes the floor-price check, snapshots cost at sale, and appends exactly
// one sale movement. Any rejection rolls back the whole sale.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput, actor string) (CheckoutResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return CheckoutResult{}, validationError(err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	qtx := s.queries.WithTx(tx)
	collector := &events.MovementCollector{}
	led := &ledger.Service{Store: qtx, Locker: s.locker, LockTTL: s.lockTTL, Notifier: collector}

	saleID := uuid.New()
	total := decimal.Zero
	lines := make([]LineResult, 0, len(input.Lines))
	items := make([]db.CreateSaleLineItemParams, 0, len(input.Lines))
	productIDs := make(map[uuid.UUID]struct{})

	for i, line := range input.Lines {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return CheckoutResult{}, badRequest(lineField(i, "productId"), "productId must be a valid uuid", err)
		}
		batch, err := led.SelectBatchFIFO(ctx, productID, line.Quantity)
		if err != nil {
			return CheckoutResult{}, mapLedgerError(i, err)
		}

		quote, err := s.quoteLine(batch, line)
		if err != nil {
			return CheckoutResult{}, mapQuoteError(i, err)
		}
		if _, err := led.RecordSale(ctx, batch.ID, line.Quantity,
			ledger.Reference{Type: "sale", ID: saleID}, actor); err != nil {
			return CheckoutResult{}, mapLedgerError(i, err)
		}
		productIDs[productID] = struct{}{}
		obs.IncSaleRecorded(string(quote.Tier))

		qty := decimal.NewFromInt(line.Quantity)
		lineTotal := quote.FinalPriceRounded.Mul(qty)
		total = total.Add(lineTotal)

		items = append(items, db.CreateSaleLineItemParams{
			SaleID:            saleID,
			BatchID:           batch.ID,
			Quantity:          line.Quantity,
			PriceTier:         string(quote.Tier),
			SellingPriceExVAT: quote.SellingPriceExVAT,
			VATAmount:         quote.VATAmount,
			RoundingExtra:     quote.RoundingExtra,
			FinalPrice:        quote.FinalPriceRounded,
			CostAtSale:        actualCost(batch.ProductBatch),
			OriginalCost:      batch.OriginalCost,
			DiscountedCost:    batch.DiscountedCost,
			Profit:            quote.Profit,
		})
		lines = append(lines, LineResult{
			BatchID:           batch.ID.String(),
			BatchNumber:       batch.BatchNumber,
			ProductID:         productID.String(),
			Quantity:          line.Quantity,
			PriceTier:         string(quote.Tier),
			SellingPriceExVAT: quote.SellingPriceExVAT,
			VATAmount:         quote.VATAmount,
			FinalPrice:        quote.FinalPriceRounded,
			RoundingExtra:     quote.RoundingExtra,
			Profit:            quote.Profit,
			LineTotal:         lineTotal,
		})
	}

	created, err := qtx.CreateSale(ctx, db.CreateSaleParams{
		ID:            saleID,
		ReceiptNumber: newReceiptNumber(),
		TotalAmount:   total,
		CreatedBy:     actor,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create sale: %w", err)
	}
	for _, item := range items {
		if _, err := qtx.CreateSaleLineItem(ctx, item); err != nil {
			return CheckoutResult{}, fmt.Errorf("create sale line item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return CheckoutResult{}, fmt.Errorf("commit: %w", err)
	}

	collector.Flush(ctx, s.bus, s.log)
	s.afterCommit(ctx, created, productIDs)

	return CheckoutResult{
		SaleID:        created.ID.String(),
		ReceiptNumber: created.ReceiptNumber,
		TotalAmount:   created.TotalAmount,
		CreatedAt:     created.CreatedAt,
		Lines:         lines,
	}, nil
}

// quoteLine resolves the tier price from the batch and runs the sale quote.
func (s *Service) quoteLine(batch db.BatchWithStock, line LineInput) (pricing.SaleQuote, error) {
	tier := pricing.PriceTier(line.PriceTier)
	var selling decimal.Decimal
	switch tier {
	case pricing.TierTarget:
		selling = batch.TargetPriceExVAT
	case pricing.TierMinimum:
		if batch.MinimumPriceExVAT == nil {
			return pricing.SaleQuote{}, errNoMinimumTier
		}
		selling = *batch.MinimumPriceExVAT
	default:
		return pricing.SaleQuote{}, pricing.ErrInvalidPriceTier
	}
	if line.SellingPriceExVAT != nil {
		selling = *line.SellingPriceExVAT
	}
	return pricing.QuoteSale(pricing.SaleInput{
		ActualCost:        actualCost(batch.ProductBatch),
		SellingPriceExVAT: selling,
		HasVAT:            batch.HasVAT,
		VATRate:           batch.VATRate,
		Tier:              tier,
		MinimumExVAT:      batch.MinimumPriceExVAT,
	})
}

// afterCommit emits sale and low-stock events. Failures here are logged,
// never surfaced: the sale is already committed.
func (s *Service) afterCommit(ctx context.Context, created db.Sale, productIDs map[uuid.UUID]struct{}) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Emit(ctx, events.TopicSaleCompleted, created.ID, map[string]any{
		"saleId":        created.ID.String(),
		"receiptNumber": created.ReceiptNumber,
		"totalAmount":   created.TotalAmount,
	}); err != nil {
		s.log.Warn().Err(err).Str("sale_id", created.ID.String()).Msg("emit sale.completed")
	}
	for productID := range productIDs {
		minStock, current, err := s.queries.GetProductStock(ctx, productID)
		if err != nil {
			s.log.Warn().Err(err).Str("product_id", productID.String()).Msg("derive product stock")
			continue
		}
		if current > minStock {
			continue
		}
		if _, err := s.bus.Emit(ctx, events.TopicStockLow, productID, map[string]any{
			"productId":    productID.String(),
			"currentStock": current,
			"minStock":     minStock,
		}); err != nil {
			s.log.Warn().Err(err).Str("product_id", productID.String()).Msg("emit stock.low")
		}
	}
}

var errNoMinimumTier = errors.New("sale: batch has no minimum price tier")

func actualCost(batch db.ProductBatch) decimal.Decimal {
	if batch.DiscountedCost != nil {
		return *batch.DiscountedCost
	}
	return batch.OriginalCost
}

func newReceiptNumber() string {
	return "RC-" + time.Now().UTC().Format("20060102-150405") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func lineField(i int, field string) string {
	return fmt.Sprintf("lines[%d].%s", i, field)
}

func mapLedgerError(i int, err error) error {
	var insufficient *ledger.InsufficientStockError
	if errors.As(err, &insufficient) {
		obs.IncInsufficientStock()
		return &common.AppError{
			Code:       "INSUFFICIENT_STOCK",
			Message:    "not enough stock in batch",
			HTTPStatus: http.StatusConflict,
			Err:        err,
			Details: map[string]any{
				"line":      i,
				"batchId":   insufficient.BatchID.String(),
				"requested": insufficient.Requested,
				"available": insufficient.Available,
			},
		}
	}
	if errors.Is(err, ledger.ErrNoBatchAvailable) {
		return &common.AppError{
			Code:       "INSUFFICIENT_STOCK",
			Message:    "no batch can satisfy the requested quantity",
			HTTPStatus: http.StatusConflict,
			Err:        err,
			Details:    map[string]any{"line": i},
		}
	}
	if errors.Is(err, ledger.ErrNonPositiveQuantity) {
		return badRequest(lineField(i, "quantity"), "quantity must be positive", err)
	}
	return err
}

func mapQuoteError(i int, err error) error {
	var floor *pricing.FloorPriceError
	if errors.As(err, &floor) {
		obs.IncFloorPriceRejected()
		return &common.AppError{
			Code:       "BELOW_FLOOR_PRICE",
			Message:    "selling price is below the batch floor price",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
			Details: map[string]any{
				"line":              i,
				"sellingPriceExVat": floor.SellingPriceExVAT,
				"minimumExVat":      floor.MinimumExVAT,
			},
		}
	}
	if errors.Is(err, errNoMinimumTier) {
		return badRequest(lineField(i, "priceTier"), "batch has no minimum price tier", err)
	}
	if errors.Is(err, pricing.ErrInvalidPriceTier) ||
		errors.Is(err, pricing.ErrNonPositiveCost) ||
		errors.Is(err, pricing.ErrVATRateOutOfRange) {
		return badRequest(lineField(i, "priceTier"), err.Error(), err)
	}
	return err
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
