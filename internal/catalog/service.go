// Package catalog manages the product master data and read views over
// batches and stock. Prices never live here: a product is only a name, a
// category, and a reorder threshold, and every price belongs to a batch.
package catalog

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
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/common"
	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/obs"
)

const lowStockCacheKey = "catalog:low-stock"

type queryProvider interface {
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (db.Product, error)
	ListProducts(ctx context.Context, limit, offset int32) ([]db.Product, error)
	CountProducts(ctx context.Context) (int64, error)
	UpdateProduct(ctx context.Context, arg db.UpdateProductParams) (db.Product, error)
	ListBatchesByProduct(ctx context.Context, productID uuid.UUID) ([]db.BatchWithStock, error)
	ListLowStockProducts(ctx context.Context) ([]db.LowStockRow, error)
}

// Service orchestrates product queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	validate     *validator.Validate
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		validate:     validator.New(),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ProductInput captures the fields accepted when creating a product.
type ProductInput struct {
	Name       string  `json:"name" validate:"required,min=1,max=200"`
	Category   string  `json:"category" validate:"required,min=1,max=100"`
	SupplierID *string `json:"supplierId" validate:"omitempty,uuid"`
	MinStock   int64   `json:"minStock" validate:"gte=0"`
	HasVAT     bool    `json:"hasVat"`
}

// ProductUpdateInput captures the mutable descriptive fields.
type ProductUpdateInput struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Category string `json:"category" validate:"required,min=1,max=100"`
	MinStock int64  `json:"minStock" validate:"gte=0"`
}

// ProductResponse is the public product payload.
type ProductResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	SupplierID *string   `json:"supplierId,omitempty"`
	MinStock   int64     `json:"minStock"`
	HasVAT     bool      `json:"hasVat"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BatchResponse is the public batch payload. Cost and price columns come
// straight from the immutable batch row; currentStock is derived from the
// movement ledger at query time.
type BatchResponse struct {
	ID                string           `json:"id"`
	ProductID         string           `json:"productId"`
	BatchNumber       string           `json:"batchNumber"`
	ExpiryDate        *string          `json:"expiryDate,omitempty"`
	OriginalCost      decimal.Decimal  `json:"originalCost"`
	DiscountPercent   *decimal.Decimal `json:"discountPercent,omitempty"`
	DiscountedCost    *decimal.Decimal `json:"discountedCost,omitempty"`
	VATRate           decimal.Decimal  `json:"vatRate"`
	HasVAT            bool             `json:"hasVat"`
	MinimumPriceExVAT *decimal.Decimal `json:"minimumPriceExVat,omitempty"`
	MinimumPriceFinal *decimal.Decimal `json:"minimumPriceFinal,omitempty"`
	TargetPriceExVAT  decimal.Decimal  `json:"targetPriceExVat"`
	TargetPriceFinal  decimal.Decimal  `json:"targetPriceFinal"`
	QuantityReceived  int64            `json:"quantityReceived"`
	CurrentStock      int64            `json:"currentStock"`
	ReceivedAt        time.Time        `json:"receivedAt"`
}

// LowStockItem is a product whose derived stock reached its threshold.
type LowStockItem struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	MinStock     int64  `json:"minStock"`
	CurrentStock int64  `json:"currentStock"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductResponse
	Total int64
	Page  int
	Limit int
}

// CreateProduct validates and persists a new product master record.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (ProductResponse, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if err := s.validate.Struct(input); err != nil {
		return ProductResponse{}, validationError(err)
	}
	params := db.CreateProductParams{
		Name:     input.Name,
		Category: input.Category,
		MinStock: input.MinStock,
		HasVAT:   input.HasVAT,
	}
	if input.SupplierID != nil {
		id, err := uuid.Parse(*input.SupplierID)
		if err != nil {
			return ProductResponse{}, badRequest("supplierId", "supplierId must be a valid uuid", err)
		}
		params.SupplierID = &id
	}
	product, err := s.queries.CreateProduct(ctx, params)
	if err != nil {
		return ProductResponse{}, fmt.Errorf("create product: %w", err)
	}
	return toProductResponse(product), nil
}

// GetProduct fetches a single product by id.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (ProductResponse, error) {
	product, err := s.queries.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductResponse{}, notFound("product not found", err)
		}
		return ProductResponse{}, fmt.Errorf("get product: %w", err)
	}
	return toProductResponse(product), nil
}

// ListProducts returns products with pagination metadata.
func (s *Service) ListProducts(ctx context.Context, page, limit int) (ProductListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	total, err := s.queries.CountProducts(ctx)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.queries.ListProducts(ctx, int32(limit), int32((page-1)*limit))
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toProductResponse(row))
	}
	return ProductListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// UpdateProduct updates descriptive fields. Pricing never lives on the
// product, so an update can not touch any batch.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductUpdateInput) (ProductResponse, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if err := s.validate.Struct(input); err != nil {
		return ProductResponse{}, validationError(err)
	}
	product, err := s.queries.UpdateProduct(ctx, db.UpdateProductParams{
		ID:       id,
		Name:     input.Name,
		Category: input.Category,
		MinStock: input.MinStock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductResponse{}, notFound("product not found", err)
		}
		return ProductResponse{}, fmt.Errorf("update product: %w", err)
	}
	s.cache.Invalidate(ctx, lowStockCacheKey)
	return toProductResponse(product), nil
}

// ListBatches returns all batches of a product with derived stock, ordered
// nearest expiry first.
func (s *Service) ListBatches(ctx context.Context, productID uuid.UUID) ([]BatchResponse, error) {
	if _, err := s.queries.GetProductByID(ctx, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product not found", err)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	rows, err := s.queries.ListBatchesByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	items := make([]BatchResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToBatchResponse(row))
	}
	return items, nil
}

// LowStock returns products at or below their reorder threshold. The view is
// served from a short-lived cache: it joins every movement row and sits on
// the owner's dashboard.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	var cached []LowStockItem
	if ok, err := s.cache.GetJSON(ctx, lowStockCacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.queries.ListLowStockProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	items := make([]LowStockItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, LowStockItem{
			ProductID:    row.ProductID.String(),
			Name:         row.Name,
			Category:     row.Category,
			MinStock:     row.MinStock,
			CurrentStock: row.CurrentStock,
		})
	}
	obs.SetLowStockProducts(len(items))
	_ = s.cache.SetJSON(ctx, lowStockCacheKey, items)
	return items, nil
}

// ToBatchResponse converts a stored batch into its public payload.
func ToBatchResponse(row db.BatchWithStock) BatchResponse {
	resp := BatchResponse{
		ID:                row.ID.String(),
		ProductID:         row.ProductID.String(),
		BatchNumber:       row.BatchNumber,
		OriginalCost:      row.OriginalCost,
		DiscountPercent:   row.DiscountPercent,
		DiscountedCost:    row.DiscountedCost,
		VATRate:           row.VATRate,
		HasVAT:            row.HasVAT,
		MinimumPriceExVAT: row.MinimumPriceExVAT,
		MinimumPriceFinal: row.MinimumPriceFinal,
		TargetPriceExVAT:  row.TargetPriceExVAT,
		TargetPriceFinal:  row.TargetPriceFinal,
		QuantityReceived:  row.QuantityReceived,
		CurrentStock:      row.CurrentStock,
		ReceivedAt:        row.ReceivedAt,
	}
	if row.ExpiryDate != nil {
		formatted := row.ExpiryDate.Format("2006-01-02")
		resp.ExpiryDate = &formatted
	}
	return resp
}

func toProductResponse(p db.Product) ProductResponse {
	resp := ProductResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Category:  p.Category,
		MinStock:  p.MinStock,
		HasVAT:    p.HasVAT,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.SupplierID != nil {
		id := p.SupplierID.String()
		resp.SupplierID = &id
	}
	return resp
}

func validationError(err error) *common.AppError {
	details := map[string]any{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
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

func notFound(message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "NOT_FOUND",
		Message:    message,
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}
