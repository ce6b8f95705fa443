// Package purchase implements the purchase intake workflow: an invoice with
// priced lines becomes immutable batches plus purchase movements, atomically.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/catalog"
	"github.com/noah-isme/backend-apotek/internal/common"
	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
	"github.com/noah-isme/backend-apotek/internal/ledger"
	"github.com/noah-isme/backend-apotek/internal/obs"
	"github.com/noah-isme/backend-apotek/internal/pricing"
)

// Service runs the purchase intake workflow.
type Service struct {
	pool     *pgxpool.Pool
	queries  *db.Queries
	calc     pricing.Calculator
	bus      *events.Bus
	log      zerolog.Logger
	validate *validator.Validate
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Pool    *pgxpool.Pool
	Queries *db.Queries
	Calc    pricing.Calculator
	Bus     *events.Bus
	Logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Pool == nil {
		return nil, errors.New("purchase: pgx pool is required")
	}
	if cfg.Queries == nil {
		return nil, errors.New("purchase: queries are required")
	}
	return &Service{
		pool:     cfg.Pool,
		queries:  cfg.Queries,
		calc:     cfg.Calc,
		bus:      cfg.Bus,
		log:      cfg.Logger,
		validate: validator.New(),
	}, nil
}

// LineInput is one invoice line. VAT applicability comes from the product
// master record, not from the line.
type LineInput struct {
	ProductID        string           `json:"productId" validate:"required,uuid"`
	BatchNumber      string           `json:"batchNumber" validate:"required,min=1,max=100"`
	ExpiryDate       *string          `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
	QuantityReceived int64            `json:"quantityReceived" validate:"required,gt=0"`
	OriginalCost     decimal.Decimal  `json:"originalCost"`
	DiscountPercent  *decimal.Decimal `json:"discountPercent"`
	VATRate          decimal.Decimal  `json:"vatRate"`
}

// InvoiceInput is the purchase invoice DTO.
type InvoiceInput struct {
	SupplierID    string      `json:"supplierId" validate:"required,uuid"`
	InvoiceNumber string      `json:"invoiceNumber" validate:"required,min=1,max=100"`
	Lines         []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// InvoiceResult is returned after a successful intake: the created invoice
// with every batch's persisted pricing breakdown.
type InvoiceResult struct {
	InvoiceID     string                  `json:"invoiceId"`
	InvoiceNumber string                  `json:"invoiceNumber"`
	SupplierID    string                  `json:"supplierId"`
	CreatedAt     time.Time               `json:"createdAt"`
	Batches       []catalog.BatchResponse `json:"batches"`
}

// Receive validates the invoice, prices every line, and persists invoice,
// batches and purchase movements in a single transaction. Partial intake is
// never visible: any line failure rolls back the whole invoice.
func (s *Service) Receive(ctx context.Context, input InvoiceInput, actor string) (InvoiceResult, error) {
	input.InvoiceNumber = strings.TrimSpace(input.InvoiceNumber)
	if err := s.validate.Struct(input); err != nil {
		return InvoiceResult{}, validationError(err)
	}
	supplierID, err := uuid.Parse(input.SupplierID)
	if err != nil {
		return InvoiceResult{}, badRequest("supplierId", "supplierId must be a valid uuid", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return InvoiceResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	qtx := s.queries.WithTx(tx)
	collector := &events.MovementCollector{}
	led := &ledger.Service{Store: qtx, Notifier: collector}

	invoice, err := qtx.CreatePurchaseInvoice(ctx, db.CreatePurchaseInvoiceParams{
		SupplierID:    supplierID,
		InvoiceNumber: input.InvoiceNumber,
		CreatedBy:     actor,
	})
	if err != nil {
		return InvoiceResult{}, fmt.Errorf("create invoice: %w", err)
	}

	batches := make([]catalog.BatchResponse, 0, len(input.Lines))
	for i, line := range input.Lines {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return InvoiceResult{}, badRequest(lineField(i, "productId"), "productId must be a valid uuid", err)
		}
		product, err := qtx.GetProductByID(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return InvoiceResult{}, &common.AppError{
					Code:       "NOT_FOUND",
					Message:    "product not found",
					HTTPStatus: http.StatusNotFound,
					Err:        err,
					Details:    map[string]any{"field": lineField(i, "productId")},
				}
			}
			return InvoiceResult{}, fmt.Errorf("get product: %w", err)
		}

		params, err := PriceLine(s.calc, product, line, supplierID, invoice.ID)
		if err != nil {
			return InvoiceResult{}, lineError(i, err)
		}
		batch, err := qtx.CreateBatch(ctx, params)
		if err != nil {
			return InvoiceResult{}, fmt.Errorf("create batch: %w", err)
		}
		if _, err := led.RecordPurchase(ctx, batch.ID, line.QuantityReceived,
			ledger.Reference{Type: "purchase_invoice", ID: invoice.ID}, actor); err != nil {
			return InvoiceResult{}, fmt.Errorf("record purchase movement: %w", err)
		}
		batches = append(batches, catalog.ToBatchResponse(db.BatchWithStock{
			ProductBatch: batch,
			CurrentStock: line.QuantityReceived,
		}))
	}

	if err := tx.Commit(ctx); err != nil {
		return InvoiceResult{}, fmt.Errorf("commit: %w", err)
	}

	collector.Flush(ctx, s.bus, s.log)
	if s.bus != nil {
		if _, err := s.bus.Emit(ctx, events.TopicPurchaseReceived, invoice.ID, map[string]any{
			"invoiceId":     invoice.ID.String(),
			"invoiceNumber": invoice.InvoiceNumber,
			"lineCount":     len(batches),
		}); err != nil {
			s.log.Warn().Err(err).Str("invoice_id", invoice.ID.String()).Msg("emit purchase.received")
		}
	}

	return InvoiceResult{
		InvoiceID:     invoice.ID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		SupplierID:    invoice.SupplierID.String(),
		CreatedAt:     invoice.CreatedAt,
		Batches:       batches,
	}, nil
}

// CreateSupplier registers a supplier.
func (s *Service) CreateSupplier(ctx context.Context, name string) (db.Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return db.Supplier{}, badRequest("name", "name is required", nil)
	}
	return s.queries.CreateSupplier(ctx, name)
}

// ListSuppliers returns all suppliers.
func (s *Service) ListSuppliers(ctx context.Context) ([]db.Supplier, error) {
	return s.queries.ListSuppliers(ctx)
}

// Quote prices a line without persisting anything. Backs the purchase
// screen's dry-run endpoint.
func (s *Service) Quote(ctx context.Context, input QuoteInput) (pricing.ProductQuote, error) {
	if err := s.validate.Struct(input); err != nil {
		return pricing.ProductQuote{}, validationError(err)
	}
	discount := decimal.Zero
	if input.DiscountPercent != nil {
		discount = *input.DiscountPercent
	}
	start := time.Now()
	quote, err := s.calc.QuoteProduct(pricing.ProductCostInput{
		OriginalCost:    input.OriginalCost,
		DiscountPercent: discount,
		HasVAT:          input.HasVAT,
		VATRate:         input.VATRate,
	})
	obs.ObserveQuoteLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return pricing.ProductQuote{}, quoteError(err)
	}
	return quote, nil
}

// QuoteInput is the dry-run pricing request.
type QuoteInput struct {
	OriginalCost    decimal.Decimal  `json:"originalCost"`
	DiscountPercent *decimal.Decimal `json:"discountPercent"`
	HasVAT          bool             `json:"hasVat"`
	VATRate         decimal.Decimal  `json:"vatRate"`
}

// PriceLine turns an invoice line into batch parameters by running the
// product quote. Exposed for the intake path and its tests.
func PriceLine(calc pricing.Calculator, product db.Product, line LineInput, supplierID, invoiceID uuid.UUID) (db.CreateBatchParams, error) {
	discount := decimal.Zero
	if line.DiscountPercent != nil {
		discount = *line.DiscountPercent
	}
	quote, err := calc.QuoteProduct(pricing.ProductCostInput{
		OriginalCost:    line.OriginalCost,
		DiscountPercent: discount,
		HasVAT:          product.HasVAT,
		VATRate:         line.VATRate,
	})
	if err != nil {
		return db.CreateBatchParams{}, err
	}
	params := db.CreateBatchParams{
		ProductID:         product.ID,
		SupplierID:        &supplierID,
		PurchaseInvoiceID: invoiceID,
		BatchNumber:       strings.TrimSpace(line.BatchNumber),
		OriginalCost:      quote.OriginalCost,
		VATRate:           line.VATRate,
		HasVAT:            product.HasVAT,
		TargetPriceExVAT:  quote.Target.ExVAT,
		TargetPriceFinal:  quote.Target.Rounded,
		QuantityReceived:  line.QuantityReceived,
	}
	if line.ExpiryDate != nil {
		expiry, err := time.Parse("2006-01-02", *line.ExpiryDate)
		if err != nil {
			return db.CreateBatchParams{}, fmt.Errorf("parse expiry date: %w", err)
		}
		params.ExpiryDate = &expiry
	}
	if quote.HasDiscount {
		params.DiscountPercent = &discount
		params.DiscountedCost = quote.DiscountedCost
		if quote.Minimum != nil {
			minExVAT := quote.Minimum.ExVAT
			minFinal := quote.Minimum.Rounded
			params.MinimumPriceExVAT = &minExVAT
			params.MinimumPriceFinal = &minFinal
		}
	}
	return params, nil
}

func lineField(i int, field string) string {
	return fmt.Sprintf("lines[%d].%s", i, field)
}

func lineError(i int, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	mapped := quoteError(err)
	if appErr, ok := mapped.(*common.AppError); ok {
		if appErr.Details == nil {
			appErr.Details = map[string]any{}
		}
		if details, ok := appErr.Details.(map[string]any); ok {
			details["line"] = i
		}
		return appErr
	}
	return mapped
}

func quoteError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrNonPositiveCost),
		errors.Is(err, pricing.ErrDiscountOutOfRange),
		errors.Is(err, pricing.ErrVATRateOutOfRange):
		return &common.AppError{
			Code:       "VALIDATION",
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
			Details:    map[string]any{},
		}
	default:
		return err
	}
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
