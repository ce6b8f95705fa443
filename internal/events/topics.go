package events

// Topic constants for domain events emitted by the platform.
const (
	TopicStockMovementRecorded = "stock.movement.recorded"
	TopicStockLow              = "stock.low"
	TopicBatchExhausted        = "batch.exhausted"
	TopicBatchExpiringSoon     = "batch.expiring_soon"
	TopicPurchaseReceived      = "purchase.received"
	TopicSaleCompleted         = "sale.completed"
	TopicStockTakeApplied      = "stock_take.applied"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicStockMovementRecorded,
		TopicStockLow,
		TopicBatchExhausted,
		TopicBatchExpiringSoon,
		TopicPurchaseReceived,
		TopicSaleCompleted,
		TopicStockTakeApplied,
	}
}
