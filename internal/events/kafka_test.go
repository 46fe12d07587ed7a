package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachpay/internal/domain"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewClient(t *testing.T) {
	c := NewClient(" broker-1:9092, ,broker-2:9092 ")
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())

	assert.False(t, NewClient("").Enabled())
	_, err := NewAnomalyPublisher(NewClient(""), "audit")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestAnomalyPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := NewAnomalyPublisherWithWriter(w)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), &domain.Anomaly{
		ID:        "a-1",
		OrderID:   "ord-1",
		Category:  domain.AnomalyTransferFailure,
		Severity:  domain.SeverityError,
		Detail:    "declined",
		CreatedAt: created,
	}))
	require.NoError(t, p.Publish(context.Background(), &domain.Anomaly{
		ID:       "a-2",
		Category: domain.AnomalyWebhookRejected,
		Severity: domain.SeverityInfo,
	}))
	require.NoError(t, p.Close())

	require.Len(t, w.messages, 2)
	assert.Equal(t, "ord-1", string(w.messages[0].Key))
	assert.Equal(t, "a-2", string(w.messages[1].Key))
	assert.True(t, w.closed)

	var msg AnomalyMessage
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &msg))
	assert.Equal(t, "TRANSFER_FAILURE", msg.Category)
	assert.Equal(t, "ERROR", msg.Severity)
	assert.True(t, msg.CreatedAt.Equal(created))
}
