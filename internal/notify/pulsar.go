package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/schedule"
)

// producer is the subset of pulsar.Producer used for delivery.
type producer interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

// PulsarDeliverer publishes notifications to a Pulsar topic for consumers
// that prefer a broker over the webhook. Messages are keyed by task id so a
// key-shared subscription sees one task's notifications in order.
type PulsarDeliverer struct {
	client   pulsar.Client
	producer producer
	topic    string
	logger   *slog.Logger
}

var _ Deliverer = (*PulsarDeliverer)(nil)

// NewPulsarDeliverer connects to url and creates a producer on topic.
func NewPulsarDeliverer(url, topic string, logger *slog.Logger) (*PulsarDeliverer, error) {
	if url == "" {
		return nil, domain.NewValidationError("pulsar_url", "cannot be empty", nil)
	}
	if topic == "" {
		return nil, domain.NewValidationError("pulsar_topic", "cannot be empty", nil)
	}

	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:               url,
		OperationTimeout:  30 * time.Second,
		ConnectionTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pulsar client: %w", err)
	}

	p, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
		Name:  "taskapi-notify",
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create pulsar producer: %w", err)
	}

	d := newPulsarDeliverer(p, topic, logger)
	d.client = client
	return d, nil
}

func newPulsarDeliverer(p producer, topic string, logger *slog.Logger) *PulsarDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PulsarDeliverer{
		producer: p,
		topic:    topic,
		logger:   logger.With("component", "pulsar_deliverer", "topic", topic),
	}
}

// Deliver publishes payload and waits for the broker acknowledgement.
func (d *PulsarDeliverer) Deliver(ctx context.Context, jobID string, payload schedule.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	_, err = d.producer.Send(ctx, &pulsar.ProducerMessage{
		Payload: body,
		Key:     payload.TaskID.String(),
		Properties: map[string]string{
			"notification_id": jobID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	d.logger.DebugContext(ctx, "notification published",
		"job_id", jobID,
		"task_id", payload.TaskID)
	return nil
}

// Close flushes the producer and closes the client connection.
func (d *PulsarDeliverer) Close() {
	d.producer.Close()
	if d.client != nil {
		d.client.Close()
	}
}
