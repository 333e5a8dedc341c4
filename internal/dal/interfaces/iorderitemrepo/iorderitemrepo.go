package iorderitemrepo

import (
	"context"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/orderitem"
)

// PostgresRepository is the contract of the order item repository.
type PostgresRepository interface {
	BulkInsert(ctx context.Context, orderItems []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	Query(ctx context.Context, filter *orderitem.QueryOrderItemsModel) ([]orderitem.OrderItem, error)
}
