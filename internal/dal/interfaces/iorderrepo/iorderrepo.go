package iorderrepo

import (
	"context"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
)

// PostgresRepository is the contract of the order repository.
type PostgresRepository interface {
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	GetByID(ctx context.Context, id int64) (*order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	Count(ctx context.Context, filter *order.QueryOrdersModel) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error)
}
