package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/smallbiznis/crm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestEventEncode(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	body, err := Event{Type: TypeOrderCreated, OccurredAt: at, Payload: map[string]string{"order_id": "1"}}.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "order.created", decoded["type"])
	assert.Equal(t, "2024-03-01T10:00:00Z", decoded["occurred_at"])
}

func TestNewPublisherWithoutBrokerIsNoop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	publisher, err := NewPublisher(lc, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Noop{}, publisher)
	assert.NoError(t, publisher.Publish(context.Background(), Event{Type: TypeOrderCreated}))
}

func TestRecorderKeepsEvents(t *testing.T) {
	rec := &Recorder{}
	require.NoError(t, rec.Publish(context.Background(), Event{Type: TypeProductsRestocked}))
	require.Len(t, rec.Events, 1)
	assert.Equal(t, TypeProductsRestocked, rec.Events[0].Type)
}
