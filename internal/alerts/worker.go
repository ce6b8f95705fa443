package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-apotek/internal/common"
)

// Handlers processes alert tasks on the worker side.
type Handlers struct {
	Log   zerolog.Logger
	Email common.EmailSender
	To    string
}

// Register attaches all alert handlers to the mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeLowStock, h.HandleLowStock)
	mux.HandleFunc(TypeBatchExhausted, h.HandleBatchExhausted)
	mux.HandleFunc(TypeExpiringBatch, h.HandleExpiringBatch)
}

// HandleLowStock records a low-stock alert.
func (h *Handlers) HandleLowStock(_ context.Context, task *asynq.Task) error {
	var payload LowStockPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("alerts: decode low stock task: %w", err)
	}
	h.Log.Warn().
		Str("product_id", payload.ProductID).
		Int64("current_stock", payload.CurrentStock).
		Int64("min_stock", payload.MinStock).
		Msg("low stock alert")
	return h.send("Low stock alert",
		fmt.Sprintf("<p>Product %s is down to %d units (threshold %d). Reorder soon.</p>",
			payload.ProductID, payload.CurrentStock, payload.MinStock))
}

// HandleBatchExhausted records a batch-exhausted alert.
func (h *Handlers) HandleBatchExhausted(_ context.Context, task *asynq.Task) error {
	var payload BatchExhaustedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("alerts: decode batch exhausted task: %w", err)
	}
	h.Log.Info().
		Str("batch_id", payload.BatchID).
		Msg("batch exhausted")
	return h.send("Batch exhausted",
		fmt.Sprintf("<p>Batch %s has been fully sold out.</p>", payload.BatchID))
}

// HandleExpiringBatch records a near-expiry alert.
func (h *Handlers) HandleExpiringBatch(_ context.Context, task *asynq.Task) error {
	var payload ExpiringBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("alerts: decode expiring batch task: %w", err)
	}
	h.Log.Warn().
		Str("batch_id", payload.BatchID).
		Str("batch_number", payload.BatchNumber).
		Time("expiry_date", payload.ExpiryDate).
		Int("days_left", payload.DaysLeft).
		Msg("batch expiring soon")
	return h.send("Batch expiring soon",
		fmt.Sprintf("<p>Batch %s (id %s) expires on %s, %d days from now.</p>",
			payload.BatchNumber, payload.BatchID, payload.ExpiryDate.Format("2006-01-02"), payload.DaysLeft))
}

func (h *Handlers) send(subject, html string) error {
	if h.Email == nil || h.To == "" {
		return nil
	}
	return h.Email.Send(h.To, subject, html)
}
