package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/rabbitmq"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// Worker replays parked notifications from the notification outbox.
type Worker struct {
	outboxRepo    ioutboxrepo.Repository
	rabbitClient  *rabbitmq.Client
	pollInterval  time.Duration
	batchSize     int
	retryInterval time.Duration
	stopCh        chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(
	outboxRepo ioutboxrepo.Repository,
	rabbitClient *rabbitmq.Client,
) *Worker {
	pollIntervalSeconds := viper.GetInt("rabbitmq.outbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("rabbitmq.outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	retryIntervalSeconds := viper.GetInt("rabbitmq.outbox.retry_interval_seconds")
	if retryIntervalSeconds == 0 {
		retryIntervalSeconds = 30
	}

	return &Worker{
		outboxRepo:    outboxRepo,
		rabbitClient:  rabbitClient,
		pollInterval:  time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:     batchSize,
		retryInterval: time.Duration(retryIntervalSeconds) * time.Second,
		stopCh:        make(chan struct{}),
	}
}

// Start begins replaying messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// processMessages retrieves due messages and republishes them.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.outboxRepo.GetPending(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Replaying outbox messages", "count", len(messages))

	for _, msg := range messages {
		err := w.rabbitClient.Publish(msg.ExchangeName, msg.RoutingKey, amqp.Publishing{
			MessageId:   msg.MessageID,
			ContentType: msg.ContentType,
			Body:        msg.Payload,
		})
		if err != nil {
			// Exponential backoff on the next retry slot
			backoff := time.Duration(math.Pow(2, float64(msg.RetryCount))) * w.retryInterval
			nextRetryAt := time.Now().Add(backoff)

			if msg.RetryCount+1 >= msg.MaxRetries {
				slog.Error("Outbox message exceeded retry budget, giving up",
					"message_id", msg.MessageID,
					"retry_count", msg.RetryCount+1,
					"error", err,
				)
			}

			if markErr := w.outboxRepo.MarkFailed(ctx, msg.ID, err.Error(), nextRetryAt); markErr != nil {
				slog.Error("Failed to mark outbox message failed", "message_id", msg.MessageID, "error", markErr)
			}

			continue
		}

		if err := w.outboxRepo.MarkPublished(ctx, msg.ID); err != nil {
			slog.Error("Failed to mark outbox message published", "message_id", msg.MessageID, "error", err)
		}
	}
}
