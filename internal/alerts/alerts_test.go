package alerts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/common"
	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/events"
)

type captureClient struct {
	tasks []*asynq.Task
}

func (c *captureClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "test", Type: task.Type()}, nil
}

func TestEnqueuerMapsStockLow(t *testing.T) {
	client := &captureClient{}
	enq := &Enqueuer{Client: client}

	productID := uuid.New()
	payload, err := json.Marshal(LowStockPayload{ProductID: productID.String(), CurrentStock: 4, MinStock: 10})
	require.NoError(t, err)

	err = enq.Notify(context.Background(), db.DomainEvent{
		Topic:       events.TopicStockLow,
		AggregateID: productID,
		Payload:     payload,
	})
	require.NoError(t, err)
	require.Len(t, client.tasks, 1)
	assert.Equal(t, TypeLowStock, client.tasks[0].Type())

	var decoded LowStockPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &decoded))
	assert.Equal(t, int64(4), decoded.CurrentStock)
}

func TestEnqueuerMapsBatchExhausted(t *testing.T) {
	client := &captureClient{}
	enq := &Enqueuer{Client: client}

	batchID := uuid.New()
	err := enq.Notify(context.Background(), db.DomainEvent{
		Topic:       events.TopicBatchExhausted,
		AggregateID: batchID,
		Payload:     []byte(`{}`),
	})
	require.NoError(t, err)
	require.Len(t, client.tasks, 1)
	assert.Equal(t, TypeBatchExhausted, client.tasks[0].Type())
}

func TestEnqueuerIgnoresUnmappedTopics(t *testing.T) {
	client := &captureClient{}
	enq := &Enqueuer{Client: client}

	err := enq.Notify(context.Background(), db.DomainEvent{
		Topic:       events.TopicSaleCompleted,
		AggregateID: uuid.New(),
		Payload:     []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Empty(t, client.tasks)
}

func TestHandleLowStockSendsEmail(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	handlers := &Handlers{Email: outbox, To: "owner@apotek.test"}

	payload, err := json.Marshal(LowStockPayload{ProductID: uuid.NewString(), CurrentStock: 2, MinStock: 10})
	require.NoError(t, err)

	err = handlers.HandleLowStock(context.Background(), asynq.NewTask(TypeLowStock, payload))
	require.NoError(t, err)
	require.Len(t, outbox.Outbox, 1)
	assert.Equal(t, "Low stock alert", outbox.Outbox[0].Subject)
}

func TestHandleBadPayloadFails(t *testing.T) {
	handlers := &Handlers{}
	err := handlers.HandleLowStock(context.Background(), asynq.NewTask(TypeLowStock, []byte("not json")))
	assert.Error(t, err)
}
