package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-apotek/internal/db"
)

// CollectedMovement pairs a ledger movement with the batch stock after it.
type CollectedMovement struct {
	Movement   db.StockMovement
	StockAfter int64
}

// MovementCollector buffers movements observed inside a transaction so their
// events can be emitted after commit. It satisfies the ledger notifier
// contract.
type MovementCollector struct {
	mu      sync.Mutex
	entries []CollectedMovement
}

// MovementRecorded buffers one accepted movement.
func (c *MovementCollector) MovementRecorded(_ context.Context, movement db.StockMovement, stockAfter int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, CollectedMovement{Movement: movement, StockAfter: stockAfter})
}

// Entries returns the buffered movements in append order.
func (c *MovementCollector) Entries() []CollectedMovement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CollectedMovement(nil), c.entries...)
}

// Flush emits a movement-recorded event per buffered entry, plus a
// batch-exhausted event for every outbound movement that drained its batch.
// Emission failures are logged, never surfaced: the transaction that produced
// the movements has already committed.
func (c *MovementCollector) Flush(ctx context.Context, bus *Bus, log zerolog.Logger) {
	if bus == nil {
		return
	}
	for _, entry := range c.Entries() {
		m := entry.Movement
		payload := map[string]any{
			"movementId":    m.ID.String(),
			"batchId":       m.BatchID.String(),
			"movementType":  m.MovementType,
			"quantity":      m.Quantity,
			"referenceType": m.ReferenceType,
			"referenceId":   m.ReferenceID.String(),
			"actor":         m.Actor,
			"stockAfter":    entry.StockAfter,
		}
		if _, err := bus.Emit(ctx, TopicStockMovementRecorded, m.BatchID, payload); err != nil {
			log.Warn().Err(err).Str("batch_id", m.BatchID.String()).Msg("emit stock.movement.recorded")
		}
		if entry.StockAfter == 0 && m.Quantity < 0 {
			if _, err := bus.Emit(ctx, TopicBatchExhausted, m.BatchID, map[string]any{
				"batchId": m.BatchID.String(),
			}); err != nil {
				log.Warn().Err(err).Str("batch_id", m.BatchID.String()).Msg("emit batch.exhausted")
			}
		}
	}
}
