package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
)

// TaskEnqueuer is the asynq client surface the enqueuer needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer subscribes to the event bus and converts alert-worthy events into
// queue tasks. It implements events.Notifier.
type Enqueuer struct {
	Client TaskEnqueuer
	Log    zerolog.Logger
}

var _ events.Notifier = (*Enqueuer)(nil)

// Notify inspects the event topic and enqueues the matching alert task.
// Topics without an alert mapping are ignored.
func (e *Enqueuer) Notify(ctx context.Context, event db.DomainEvent) error {
	if e == nil || e.Client == nil {
		return nil
	}
	task, err := e.taskFor(event)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}
	info, err := e.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("alerts: enqueue %s: %w", task.Type(), err)
	}
	e.Log.Debug().Str("task_id", info.ID).Str("type", task.Type()).Msg("alert task enqueued")
	return nil
}

func (e *Enqueuer) taskFor(event db.DomainEvent) (*asynq.Task, error) {
	switch event.Topic {
	case events.TopicStockLow:
		var payload LowStockPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, fmt.Errorf("alerts: decode %s payload: %w", event.Topic, err)
		}
		return NewLowStockTask(payload)
	case events.TopicBatchExhausted:
		return NewBatchExhaustedTask(BatchExhaustedPayload{BatchID: event.AggregateID.String()})
	case events.TopicBatchExpiringSoon:
		var payload ExpiringBatchPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, fmt.Errorf("alerts: decode %s payload: %w", event.Topic, err)
		}
		return NewExpiringBatchTask(payload)
	default:
		return nil, nil
	}
}
