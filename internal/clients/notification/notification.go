package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/remote"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/outbox"
	"github.com/streadway/amqp"
)

// Type enumerates the notification kinds the saga emits.
type Type string

const (
	TypeOrderCreated   Type = "order_created"
	TypeOrderPaid      Type = "order_paid"
	TypeOrderShipped   Type = "order_shipped"
	TypeOrderDelivered Type = "order_delivered"
	TypeOrderCancelled Type = "order_cancelled"
)

const contentTypeJSON = "application/json"

// publisher abstracts the AMQP channel so tests run without a broker.
type publisher interface {
	Publish(exchange, routingKey string, publishing amqp.Publishing) error
}

// message is the payload consumed by the notification pipeline.
type message struct {
	MessageID string         `json:"messageId"`
	UserID    int64          `json:"userId"`
	Type      Type           `json:"type"`
	OrderID   int64          `json:"orderId"`
	Data      map[string]any `json:"data,omitempty"`
	SentAt    time.Time      `json:"sentAt"`
}

// Client publishes order notifications to RabbitMQ. The whole contract is
// best-effort: Notify never returns an error to the saga. A publish that
// fails even after the retry budget is parked in the notification outbox
// for the outbox worker to replay.
type Client struct {
	pub          publisher
	outboxRepo   ioutboxrepo.Repository
	caller       *remote.Caller
	exchangeName string
	maxRetries   int
}

// NewClient creates a notification client publishing to exchangeName.
func NewClient(pub publisher, outboxRepo ioutboxrepo.Repository, caller *remote.Caller, exchangeName string, maxRetries int) *Client {
	return &Client{
		pub:          pub,
		outboxRepo:   outboxRepo,
		caller:       caller,
		exchangeName: exchangeName,
		maxRetries:   maxRetries,
	}
}

// Notify publishes one notification. Failures are logged and parked in the
// outbox; they never propagate to the caller.
func (c *Client) Notify(ctx context.Context, userID int64, typ Type, orderID int64, data map[string]any) {
	msg := message{
		MessageID: uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		OrderID:   orderID,
		Data:      data,
		SentAt:    time.Now(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal notification", "type", typ, "order_id", orderID, "error", err)
		return
	}

	routingKey := string(typ)
	publishErr := c.caller.Do(ctx, "publish", func(context.Context) error {
		if err := c.pub.Publish(c.exchangeName, routingKey, amqp.Publishing{
			MessageId:   msg.MessageID,
			ContentType: contentTypeJSON,
			Body:        payload,
		}); err != nil {
			return apperrors.Transient(err)
		}

		return nil
	})
	if publishErr == nil {
		return
	}

	slog.ErrorContext(ctx, "failed to publish notification, parking in outbox",
		"type", typ,
		"order_id", orderID,
		"error", publishErr,
	)

	if err := c.outboxRepo.Insert(ctx, outbox.Message{
		MessageID:    msg.MessageID,
		ExchangeName: c.exchangeName,
		RoutingKey:   routingKey,
		Payload:      payload,
		ContentType:  contentTypeJSON,
		MaxRetries:   c.maxRetries,
		LastError:    publishErr.Error(),
		NextRetryAt:  time.Now(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to park notification in outbox",
			"type", typ,
			"order_id", orderID,
			"error", err,
		)
	}
}
