package purchase

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-apotek/internal/common"
	"github.com/noah-isme/backend-apotek/internal/pricing"
)

// Handler exposes purchase intake, supplier, and dry-run quote endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/v1/purchases.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input InvoiceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid json body", nil)
		return
	}
	result, err := h.service.Receive(r.Context(), input, common.Actor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": result})
}

// Quote handles POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var input QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid json body", nil)
		return
	}
	quote, err := h.service.Quote(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toQuoteResponse(quote)})
}

// CreateSupplier handles POST /api/v1/suppliers.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid json body", nil)
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), input.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"id":        supplier.ID.String(),
		"name":      supplier.Name,
		"createdAt": supplier.CreatedAt,
	}})
}

// Suppliers handles GET /api/v1/suppliers.
func (h *Handler) Suppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	data := make([]map[string]any, 0, len(suppliers))
	for _, s := range suppliers {
		data = append(data, map[string]any{
			"id":        s.ID.String(),
			"name":      s.Name,
			"createdAt": s.CreatedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data})
}

// TierQuoteResponse is the wire shape of one price tier.
type TierQuoteResponse struct {
	ExVAT   decimal.Decimal `json:"exVat"`
	WithVAT decimal.Decimal `json:"withVat"`
	Rounded decimal.Decimal `json:"rounded"`
}

// QuoteResponse is the wire shape of a dry-run product quote.
type QuoteResponse struct {
	OriginalCost   decimal.Decimal    `json:"originalCost"`
	DiscountedCost *decimal.Decimal   `json:"discountedCost,omitempty"`
	ActualCost     decimal.Decimal    `json:"actualCost"`
	HasDiscount    bool               `json:"hasDiscount"`
	Target         TierQuoteResponse  `json:"target"`
	Minimum        *TierQuoteResponse `json:"minimum,omitempty"`
}

func toQuoteResponse(q pricing.ProductQuote) QuoteResponse {
	resp := QuoteResponse{
		OriginalCost:   q.OriginalCost,
		DiscountedCost: q.DiscountedCost,
		ActualCost:     q.ActualCost,
		HasDiscount:    q.HasDiscount,
		Target:         TierQuoteResponse{ExVAT: q.Target.ExVAT, WithVAT: q.Target.WithVAT, Rounded: q.Target.Rounded},
	}
	if q.Minimum != nil {
		resp.Minimum = &TierQuoteResponse{ExVAT: q.Minimum.ExVAT, WithVAT: q.Minimum.WithVAT, Rounded: q.Minimum.Rounded}
	}
	return resp
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
