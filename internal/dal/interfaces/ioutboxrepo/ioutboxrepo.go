package ioutboxrepo

import (
	"context"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/outbox"
)

// Repository is the contract of the notification outbox repository.
type Repository interface {
	Insert(ctx context.Context, msg outbox.Message) error
	GetPending(ctx context.Context, limit int) ([]outbox.Message, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastError string, nextRetryAt time.Time) error
}
