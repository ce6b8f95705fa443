package events_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
)

func TestCollectorFlushEmitsMovementEvents(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	batchID := uuid.New()
	collector := &events.MovementCollector{}
	ctx := context.Background()
	collector.MovementRecorded(ctx, db.StockMovement{
		ID:            uuid.New(),
		BatchID:       batchID,
		MovementType:  db.MovementPurchase,
		Quantity:      50,
		ReferenceType: "purchase_invoice",
		ReferenceID:   uuid.New(),
		Actor:         "tester",
	}, 50)
	collector.MovementRecorded(ctx, db.StockMovement{
		ID:            uuid.New(),
		BatchID:       batchID,
		MovementType:  db.MovementSale,
		Quantity:      -50,
		ReferenceType: "sale",
		ReferenceID:   uuid.New(),
		Actor:         "tester",
	}, 0)

	collector.Flush(ctx, bus, zerolog.Nop())

	topics := make([]string, 0, len(notifier.events))
	for _, ev := range notifier.events {
		topics = append(topics, ev.Topic)
	}
	require.Equal(t, []string{
		events.TopicStockMovementRecorded,
		events.TopicStockMovementRecorded,
		events.TopicBatchExhausted,
	}, topics)
}

func TestCollectorFlushSkipsExhaustedForInbound(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	collector := &events.MovementCollector{}
	ctx := context.Background()
	// Opening movement on an empty batch: stock lands at zero only for
	// outbound movements, so no exhausted event may fire here.
	collector.MovementRecorded(ctx, db.StockMovement{
		ID:           uuid.New(),
		BatchID:      uuid.New(),
		MovementType: db.MovementAdjustment,
		Quantity:     10,
		ReferenceID:  uuid.New(),
		Actor:        "tester",
	}, 10)

	collector.Flush(ctx, bus, zerolog.Nop())
	require.Len(t, notifier.events, 1)
	require.Equal(t, events.TopicStockMovementRecorded, notifier.events[0].Topic)
}

func TestCollectorNilBusIsNoop(t *testing.T) {
	collector := &events.MovementCollector{}
	collector.MovementRecorded(context.Background(), db.StockMovement{ID: uuid.New()}, 1)
	collector.Flush(context.Background(), nil, zerolog.Nop())
	require.Len(t, collector.Entries(), 1)
}
