package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier is a source of purchased stock.
type Supplier struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Product is the master record. It never carries a price or a stock count:
// prices live on batches, stock is derived from the movement ledger.
type Product struct {
	ID         uuid.UUID
	Name       string
	Category   string
	SupplierID *uuid.UUID
	MinStock   int64
	HasVAT     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProductBatch is one purchase lot. Cost and price columns are immutable
// after creation; re-pricing means a new batch.
type ProductBatch struct {
	ID                uuid.UUID
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
	ReceivedAt        time.Time
}

// BatchWithStock pairs a batch with its derived current stock.
type BatchWithStock struct {
	ProductBatch
	CurrentStock int64
}

// StockMovement is one immutable ledger entry against a batch. Quantity is
// signed: positive for purchase and adjustment-in, negative for sale and
// adjustment-out.
type StockMovement struct {
	ID            uuid.UUID
	BatchID       uuid.UUID
	MovementType  string
	Quantity      int64
	ReferenceType string
	ReferenceID   uuid.UUID
	Notes         *string
	Actor         string
	CreatedAt     time.Time
}

// PurchaseInvoice groups the batches received in one supplier delivery.
type PurchaseInvoice struct {
	ID            uuid.UUID
	SupplierID    uuid.UUID
	InvoiceNumber string
	CreatedBy     string
	CreatedAt     time.Time
}

// Sale is one completed point-of-sale transaction.
type Sale struct {
	ID            uuid.UUID
	ReceiptNumber string
	TotalAmount   decimal.Decimal
	CreatedBy     string
	CreatedAt     time.Time
}

// SaleLineItem is one sold line. Cost columns are snapshots copied from the
// batch at sale time; the row is never mutated afterwards.
type SaleLineItem struct {
	ID                uuid.UUID
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
	CreatedAt         time.Time
}

// LowStockRow is a product whose derived stock has reached its threshold.
type LowStockRow struct {
	ProductID    uuid.UUID
	Name         string
	Category     string
	MinStock     int64
	CurrentStock int64
}

// DomainEvent is a persisted domain event row.
type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}

// TopProductRow aggregates sold quantity and profit per product.
type TopProductRow struct {
	ProductID    uuid.UUID
	Name         string
	QuantitySold int64
	Revenue      decimal.Decimal
	Profit       decimal.Decimal
}
