// Package events publishes engine events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// ErrDisabled is returned when no brokers are configured.
var ErrDisabled = errors.New("kafka disabled")

// Client holds the broker list.
type Client struct {
	Brokers []string
}

// NewClient parses a comma-separated broker list.
func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

// Enabled reports whether any broker is configured.
func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter creates a writer for topic. Messages with the same key land on the same partition.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishJSON encodes payload and writes it under key.
func PublishJSON(ctx context.Context, writer MessageWriter, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()})
}

// AnomalyMessage is the wire form of an anomaly on the audit topic.
type AnomalyMessage struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id,omitempty"`
	Category  string    `json:"category"`
	Severity  string    `json:"severity"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// AnomalyPublisher fans audit records out to a Kafka topic, keyed by order.
type AnomalyPublisher struct {
	writer MessageWriter
}

var _ service.AnomalyPublisher = (*AnomalyPublisher)(nil)

// NewAnomalyPublisher creates a publisher for topic. It returns ErrDisabled without brokers.
func NewAnomalyPublisher(c *Client, topic string) (*AnomalyPublisher, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	return &AnomalyPublisher{writer: c.NewWriter(topic)}, nil
}

// NewAnomalyPublisherWithWriter wraps an existing writer.
func NewAnomalyPublisherWithWriter(w MessageWriter) *AnomalyPublisher {
	return &AnomalyPublisher{writer: w}
}

// Publish writes one anomaly.
func (p *AnomalyPublisher) Publish(ctx context.Context, a *domain.Anomaly) error {
	key := a.OrderID
	if key == "" {
		key = a.ID
	}
	return PublishJSON(ctx, p.writer, key, AnomalyMessage{
		ID:        a.ID,
		OrderID:   a.OrderID,
		Category:  string(a.Category),
		Severity:  string(a.Severity),
		Detail:    a.Detail,
		CreatedAt: a.CreatedAt,
	})
}

// Close flushes and closes the writer.
func (p *AnomalyPublisher) Close() error {
	return p.writer.Close()
}
