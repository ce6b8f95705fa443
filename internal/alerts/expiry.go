package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
	"github.com/noah-isme/backend-apotek/internal/ledger"
)

// ExpiryScanLockKey serializes the scan across worker replicas.
const ExpiryScanLockKey = "scan:expiring-batches"

// ExpiringBatchLister is the query surface the scanner needs.
type ExpiringBatchLister interface {
	ListExpiringBatches(ctx context.Context, cutoff time.Time) ([]db.BatchWithStock, error)
}

// ExpiryScanner periodically flags batches that still hold stock but expire
// within the alert window.
type ExpiryScanner struct {
	Store     ExpiringBatchLister
	Bus       *events.Bus
	Locker    ledger.Locker
	AlertDays int
	Log       zerolog.Logger
}

// Run scans on a fixed interval until the context is cancelled.
func (s ExpiryScanner) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 6 * time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				s.Log.Error().Err(err).Msg("expiry scan")
			}
		}
	}
}

// ScanOnce emits one expiring-soon event per batch inside the alert window.
// When a Locker is configured the scan runs under the shared lock so only
// one worker replica emits per interval.
func (s ExpiryScanner) ScanOnce(ctx context.Context) error {
	if s.Locker == nil {
		return s.scan(ctx)
	}
	return s.Locker.WithLock(ctx, ExpiryScanLockKey, time.Minute, func(ctx context.Context) error {
		return s.scan(ctx)
	})
}

func (s ExpiryScanner) scan(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, s.AlertDays)
	batches, err := s.Store.ListExpiringBatches(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		if batch.ExpiryDate == nil {
			continue
		}
		daysLeft := int(batch.ExpiryDate.Sub(now).Hours() / 24)
		payload := ExpiringBatchPayload{
			BatchID:     batch.ID.String(),
			ProductID:   batch.ProductID.String(),
			BatchNumber: batch.BatchNumber,
			ExpiryDate:  *batch.ExpiryDate,
			DaysLeft:    daysLeft,
		}
		if _, err := s.Bus.Emit(ctx, events.TopicBatchExpiringSoon, batch.ID, payload); err != nil {
			s.Log.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("emit expiring batch")
		}
	}
	if len(batches) > 0 {
		s.Log.Info().Int("count", len(batches)).Msg("expiring batches flagged")
	}
	return nil
}
