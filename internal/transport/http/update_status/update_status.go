package updatestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httpauth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httperr"
)

// service is an interface for the service layer.
type service interface {
	UpdateStatus(ctx context.Context, orderID int64, newStatus string) (*order.Order, error)
}

// updateStatusRequest represents an update status request.
type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Validate validates the update status request.
func (r *updateStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// UpdateStatus handles the update status request. Fulfillment transitions
// are an operator action, so only administrators may call it.
func UpdateStatus(w http.ResponseWriter, r *http.Request, service service) {
	caller, err := httpauth.CallerFromRequest(r)
	if err != nil {
		httperr.Render(w, r, err)

		return
	}
	if !caller.IsAdmin() {
		httperr.Render(w, r, fmt.Errorf("status updates require admin role: %w", apperrors.ErrForbidden))

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		httperr.Render(w, r, apperrors.Validationf("orderID must be a positive integer"))

		return
	}

	req := updateStatusRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.RenderValidation(w, r, err)

		return
	}
	if err := req.Validate(); err != nil {
		httperr.RenderValidation(w, r, err)

		return
	}

	updated, err := service.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		httperr.Render(w, r, err)

		return
	}

	render.JSON(w, r, updated)
}
