package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tudinhtu98/copee-nest/internal/domain"
	"github.com/tudinhtu98/copee-nest/shared/rabbitmq"
)

// RabbitQueue implements Queue on a durable RabbitMQ broker. Messages
// carry only the job id; job state lives in the store.
//
// PublishAfter uses a process-local timer before publishing, so a crash
// inside the delay window loses the re-dispatch but not the job: the row
// stays PENDING and is picked up by the stale-job sweep.
type RabbitQueue struct {
	client        *rabbitmq.Client
	logger        *slog.Logger
	prefetchCount int
	consumerTag   string
}

// NewRabbitQueue creates a new RabbitQueue
func NewRabbitQueue(client *rabbitmq.Client, prefetchCount int, logger *slog.Logger) *RabbitQueue {
	if prefetchCount <= 0 {
		prefetchCount = 10
	}
	return &RabbitQueue{
		client:        client,
		logger:        logger,
		prefetchCount: prefetchCount,
		consumerTag:   fmt.Sprintf("upload-consumer-%s", uuid.New().String()[:8]),
	}
}

// Publish sends the job id to the upload queue.
func (q *RabbitQueue) Publish(ctx context.Context, jobID string) error {
	body, err := json.Marshal(domain.JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to encode job message: %w", err)
	}
	return q.client.PublishWithRetry(ctx, body, "application/json")
}

// PublishAfter publishes the job id after the given delay.
func (q *RabbitQueue) PublishAfter(ctx context.Context, jobID string, delay time.Duration) error {
	if delay <= 0 {
		return q.Publish(ctx, jobID)
	}

	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := q.Publish(ctx, jobID); err != nil {
			q.logger.Error("Failed to publish delayed job message",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	})

	return nil
}

// Consume sets QoS and starts consuming, translating broker deliveries
// into pipeline deliveries. Malformed messages are NACKed without
// requeue so they fall through to the dead-letter setup.
func (q *RabbitQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	channel := q.client.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// prefetch bounds unacknowledged messages per consumer
	if err := channel.Qos(q.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := q.client.Consume(q.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	out := make(chan Delivery)
	go q.dispatch(ctx, deliveries, out)

	q.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", q.consumerTag),
		slog.Int("prefetch_count", q.prefetchCount),
	)

	return out, nil
}

func (q *RabbitQueue) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- Delivery) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				q.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg domain.JobMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				q.logger.Error("Failed to parse job message JSON",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				q.reject(delivery)
				continue
			}

			if _, err := uuid.Parse(msg.JobID); err != nil {
				q.logger.Error("Invalid job id in message",
					slog.String("job_id", msg.JobID),
					slog.String("error", err.Error()),
				)
				q.reject(delivery)
				continue
			}

			select {
			case out <- &rabbitDelivery{jobID: msg.JobID, delivery: delivery}:
			case <-ctx.Done():
				// Return the message so another consumer picks it up.
				if err := delivery.Nack(false, true); err != nil {
					q.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", err.Error()),
					)
				}
				return
			}
		}
	}
}

func (q *RabbitQueue) reject(delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		q.logger.Error("Failed to NACK malformed message",
			slog.String("error", err.Error()),
		)
	}
}

type rabbitDelivery struct {
	jobID    string
	delivery amqp.Delivery
}

func (d *rabbitDelivery) JobID() string { return d.jobID }

func (d *rabbitDelivery) Ack() error {
	return d.delivery.Ack(false)
}

func (d *rabbitDelivery) Nack(requeue bool) error {
	return d.delivery.Nack(false, requeue)
}
