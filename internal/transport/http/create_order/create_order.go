package createorder

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/auth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/services/ordersvc"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httpauth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httperr"
)

// service is an interface for the service layer.
type service interface {
	Create(ctx context.Context, caller auth.Caller, items []ordersvc.CreateItem, addr order.ShippingAddress) (*order.Order, error)
}

// itemInCreateOrderRequest represents an item in a create order request.
// Prices are intentionally absent; the catalog is the only price source.
type itemInCreateOrderRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity"  validate:"gt=0"`
}

// addressInCreateOrderRequest represents the delivery destination.
type addressInCreateOrderRequest struct {
	Street     string `json:"street"     validate:"required"`
	City       string `json:"city"       validate:"required"`
	State      string `json:"state"`
	Country    string `json:"country"    validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	Items           []itemInCreateOrderRequest  `json:"items"           validate:"required,min=1,dive"`
	ShippingAddress addressInCreateOrderRequest `json:"shippingAddress" validate:"required"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

func (r *createOrderRequest) toItems() []ordersvc.CreateItem {
	items := make([]ordersvc.CreateItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = ordersvc.CreateItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	return items
}

func (r *createOrderRequest) toAddress() order.ShippingAddress {
	return order.ShippingAddress{
		Street:     r.ShippingAddress.Street,
		City:       r.ShippingAddress.City,
		State:      r.ShippingAddress.State,
		Country:    r.ShippingAddress.Country,
		PostalCode: r.ShippingAddress.PostalCode,
	}
}

// CreateOrder handles the create order request.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	caller, err := httpauth.CallerFromRequest(r)
	if err != nil {
		httperr.Render(w, r, err)

		return
	}

	req := createOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RenderValidation(w, r, err)

		return
	}
	if err := req.Validate(); err != nil {
		httperr.RenderValidation(w, r, err)

		return
	}

	created, err := service.Create(r.Context(), caller, req.toItems(), req.toAddress())
	if err != nil {
		httperr.Render(w, r, err)

		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, created)
}
