package orderitem

import (
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/currency"
)

// OrderItem represents an item within an order. The price is a snapshot
// captured at order time; later catalog price changes never alter it.
type OrderItem struct {
	ID            int64             `json:"id"`
	OrderID       int64             `json:"orderId"`
	ProductID     int64             `json:"productId"`
	Quantity      int               `json:"quantity"`
	PriceCents    int64             `json:"priceCents"`
	PriceCurrency currency.Currency `json:"priceCurrency"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// QueryOrderItemsModel represents filter parameters for querying order items.
type QueryOrderItemsModel struct {
	Ids        []int64 `json:"ids,omitempty"`
	OrderIds   []int64 `json:"orderIds,omitempty"`
	ProductIds []int64 `json:"productIds,omitempty"`
	Limit      int     `json:"limit,omitempty"`
	Offset     int     `json:"offset,omitempty"`
}
