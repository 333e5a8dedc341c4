package order

import (
	"strings"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/currency"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/orderitem"
)

// Order represents an order in the system. Orders are never deleted;
// cancellation is a status transition.
type Order struct {
	ID                 int64                 `json:"id"`
	UserID             int64                 `json:"userId"`
	Status             Status                `json:"status"`
	TotalPriceCents    int64                 `json:"totalPriceCents"`
	TotalPriceCurrency currency.Currency     `json:"totalPriceCurrency"`
	ShippingAddress    ShippingAddress       `json:"shippingAddress"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	OrderItems         []orderitem.OrderItem `json:"orderItems"`
}

// ShippingAddress is the structured delivery destination of an order.
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// Validate checks that every required address field is present.
func (a ShippingAddress) Validate() error {
	missing := make([]string, 0)
	if a.Street == "" {
		missing = append(missing, "street")
	}
	if a.City == "" {
		missing = append(missing, "city")
	}
	if a.Country == "" {
		missing = append(missing, "country")
	}
	if a.PostalCode == "" {
		missing = append(missing, "postalCode")
	}
	if len(missing) > 0 {
		return apperrors.Validationf("shipping address missing fields: %s", strings.Join(missing, ", "))
	}

	return nil
}
