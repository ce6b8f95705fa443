package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/db"
)

type stubQueries struct {
	products     map[uuid.UUID]db.Product
	batches      map[uuid.UUID][]db.BatchWithStock
	lowStock     []db.LowStockRow
	lowStockHits int
}

func newStubQueries() *stubQueries {
	return &stubQueries{
		products: make(map[uuid.UUID]db.Product),
		batches:  make(map[uuid.UUID][]db.BatchWithStock),
	}
}

func (s *stubQueries) CreateProduct(_ context.Context, arg db.CreateProductParams) (db.Product, error) {
	p := db.Product{
		ID:         uuid.New(),
		Name:       arg.Name,
		Category:   arg.Category,
		SupplierID: arg.SupplierID,
		MinStock:   arg.MinStock,
		HasVAT:     arg.HasVAT,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *stubQueries) GetProductByID(_ context.Context, id uuid.UUID) (db.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubQueries) ListProducts(_ context.Context, limit, offset int32) ([]db.Product, error) {
	var out []db.Product
	for _, p := range s.products {
		out = append(out, p)
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubQueries) CountProducts(context.Context) (int64, error) {
	return int64(len(s.products)), nil
}

func (s *stubQueries) UpdateProduct(_ context.Context, arg db.UpdateProductParams) (db.Product, error) {
	p, ok := s.products[arg.ID]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	p.Name = arg.Name
	p.Category = arg.Category
	p.MinStock = arg.MinStock
	s.products[arg.ID] = p
	return p, nil
}

func (s *stubQueries) ListBatchesByProduct(_ context.Context, productID uuid.UUID) ([]db.BatchWithStock, error) {
	return s.batches[productID], nil
}

func (s *stubQueries) ListLowStockProducts(context.Context) ([]db.LowStockRow, error) {
	s.lowStockHits++
	return s.lowStock, nil
}

func newTestHandler(t *testing.T, queries *stubQueries) *Handler {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	service, err := NewService(ServiceConfig{
		Queries: queries,
		Cache:   NewCache(client, time.Minute),
	})
	require.NoError(t, err)
	return NewHandler(service)
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/products", h.Create)
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Get)
	r.Put("/products/{id}", h.Update)
	r.Get("/products/{id}/batches", h.Batches)
	r.Get("/inventory/low-stock", h.LowStock)
	return r
}

func TestCreateProduct(t *testing.T) {
	queries := newStubQueries()
	router := newRouter(newTestHandler(t, queries))

	body := bytes.NewBufferString(`{"name":"Paracetamol 500mg","category":"analgesic","minStock":20,"hasVat":true}`)
	req := httptest.NewRequest(http.MethodPost, "/products", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data ProductResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Paracetamol 500mg", resp.Data.Name)
	assert.Equal(t, int64(20), resp.Data.MinStock)
	assert.True(t, resp.Data.HasVAT)
	assert.Len(t, queries.products, 1)
}

func TestCreateProductValidation(t *testing.T) {
	router := newRouter(newTestHandler(t, newStubQueries()))

	body := bytes.NewBufferString(`{"name":"","category":"analgesic"}`)
	req := httptest.NewRequest(http.MethodPost, "/products", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION", resp.Error.Code)
}

func TestGetProductNotFound(t *testing.T) {
	router := newRouter(newTestHandler(t, newStubQueries()))

	req := httptest.NewRequest(http.MethodGet, "/products/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBatchesIncludesDerivedStock(t *testing.T) {
	queries := newStubQueries()
	productID := uuid.New()
	queries.products[productID] = db.Product{ID: productID, Name: "Amoxicillin", Category: "antibiotic"}
	expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	queries.batches[productID] = []db.BatchWithStock{{
		ProductBatch: db.ProductBatch{
			ID:               uuid.New(),
			ProductID:        productID,
			BatchNumber:      "AMX-2026-001",
			ExpiryDate:       &expiry,
			OriginalCost:     decimal.RequireFromString("100"),
			VATRate:          decimal.RequireFromString("16"),
			HasVAT:           true,
			TargetPriceExVAT: decimal.RequireFromString("133.00"),
			TargetPriceFinal: decimal.RequireFromString("155"),
			QuantityReceived: 50,
		},
		CurrentStock: 35,
	}}
	router := newRouter(newTestHandler(t, queries))

	req := httptest.NewRequest(http.MethodGet, "/products/"+productID.String()+"/batches", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []BatchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(35), resp.Data[0].CurrentStock)
	require.NotNil(t, resp.Data[0].ExpiryDate)
	assert.Equal(t, "2027-03-01", *resp.Data[0].ExpiryDate)
	assert.True(t, resp.Data[0].TargetPriceFinal.Equal(decimal.RequireFromString("155")))
}

func TestLowStockUsesCache(t *testing.T) {
	queries := newStubQueries()
	queries.lowStock = []db.LowStockRow{{
		ProductID:    uuid.New(),
		Name:         "Ibuprofen",
		Category:     "analgesic",
		MinStock:     10,
		CurrentStock: 4,
	}}
	router := newRouter(newTestHandler(t, queries))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/inventory/low-stock", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, queries.lowStockHits)
}
