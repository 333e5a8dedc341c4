package outbox

import (
	"time"
)

// Message represents a notification that failed to be published to RabbitMQ
// and is waiting for a republish attempt.
type Message struct {
	ID           int64
	MessageID    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
