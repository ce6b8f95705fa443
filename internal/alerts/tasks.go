// Package alerts turns stock events into background notification tasks. The
// API side enqueues asynq tasks; the worker consumes them and records the
// alert. Fan-out to external channels stays behind the EmailSender seam.
package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names routed through the asynq queue.
const (
	TypeLowStock       = "alerts:low_stock"
	TypeBatchExhausted = "alerts:batch_exhausted"
	TypeExpiringBatch  = "alerts:expiring_batch"
)

// LowStockPayload describes a product that dipped to its reorder threshold.
type LowStockPayload struct {
	ProductID    string `json:"productId"`
	CurrentStock int64  `json:"currentStock"`
	MinStock     int64  `json:"minStock"`
}

// BatchExhaustedPayload describes a batch whose derived stock reached zero.
type BatchExhaustedPayload struct {
	BatchID string `json:"batchId"`
}

// ExpiringBatchPayload describes a batch approaching its expiry date.
type ExpiringBatchPayload struct {
	BatchID     string    `json:"batchId"`
	ProductID   string    `json:"productId"`
	BatchNumber string    `json:"batchNumber"`
	ExpiryDate  time.Time `json:"expiryDate"`
	DaysLeft    int       `json:"daysLeft"`
}

// NewLowStockTask builds the low-stock alert task.
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("alerts: marshal low stock payload: %w", err)
	}
	return asynq.NewTask(TypeLowStock, data), nil
}

// NewBatchExhaustedTask builds the batch-exhausted alert task.
func NewBatchExhaustedTask(payload BatchExhaustedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("alerts: marshal batch exhausted payload: %w", err)
	}
	return asynq.NewTask(TypeBatchExhausted, data), nil
}

// NewExpiringBatchTask builds the near-expiry alert task.
func NewExpiringBatchTask(payload ExpiringBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("alerts: marshal expiring batch payload: %w", err)
	}
	return asynq.NewTask(TypeExpiringBatch, data), nil
}
