package alerts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
)

type stubBatchLister struct {
	batches []db.BatchWithStock
	cutoff  time.Time
}

func (s *stubBatchLister) ListExpiringBatches(_ context.Context, cutoff time.Time) ([]db.BatchWithStock, error) {
	s.cutoff = cutoff
	return s.batches, nil
}

type memEventStore struct {
	events []db.DomainEvent
}

func (s *memEventStore) InsertDomainEvent(_ context.Context, arg db.InsertDomainEventParams) (db.DomainEvent, error) {
	ev := db.DomainEvent{
		ID:          uuid.New(),
		Topic:       arg.Topic,
		AggregateID: arg.AggregateID,
		Payload:     arg.Payload,
		OccurredAt:  time.Now(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

func TestExpiryScanEmitsPerExpiringBatch(t *testing.T) {
	soon := time.Now().UTC().AddDate(0, 0, 30)
	expiring := db.BatchWithStock{
		ProductBatch: db.ProductBatch{
			ID:          uuid.New(),
			ProductID:   uuid.New(),
			BatchNumber: "PCM-2403",
			ExpiryDate:  &soon,
		},
		CurrentStock: 20,
	}
	noExpiry := db.BatchWithStock{
		ProductBatch: db.ProductBatch{ID: uuid.New(), ProductID: uuid.New(), BatchNumber: "ORL-2406"},
		CurrentStock: 50,
	}

	store := &memEventStore{}
	lister := &stubBatchLister{batches: []db.BatchWithStock{expiring, noExpiry}}
	scanner := ExpiryScanner{
		Store:     lister,
		Bus:       &events.Bus{Store: store},
		AlertDays: 90,
	}

	require.NoError(t, scanner.ScanOnce(context.Background()))

	require.Len(t, store.events, 1)
	ev := store.events[0]
	require.Equal(t, events.TopicBatchExpiringSoon, ev.Topic)
	require.Equal(t, expiring.ID, ev.AggregateID)

	var payload ExpiringBatchPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, expiring.ID.String(), payload.BatchID)
	require.Equal(t, expiring.ProductID.String(), payload.ProductID)
	require.Equal(t, "PCM-2403", payload.BatchNumber)
	require.InDelta(t, 29, payload.DaysLeft, 1)
}

func TestExpiryScanCutoffUsesAlertWindow(t *testing.T) {
	lister := &stubBatchLister{}
	scanner := ExpiryScanner{
		Store:     lister,
		Bus:       &events.Bus{Store: &memEventStore{}},
		AlertDays: 7,
	}
	require.NoError(t, scanner.ScanOnce(context.Background()))

	want := time.Now().UTC().AddDate(0, 0, 7)
	require.WithinDuration(t, want, lister.cutoff, time.Minute)
}
