package getorder

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/auth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httpauth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httperr"
)

// service is an interface for the service layer.
type service interface {
	Get(ctx context.Context, caller auth.Caller, orderID int64) (*order.Order, error)
}

// GetOrder handles the get order request.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	caller, err := httpauth.CallerFromRequest(r)
	if err != nil {
		httperr.Render(w, r, err)

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		httperr.Render(w, r, apperrors.Validationf("orderID must be a positive integer"))

		return
	}

	found, err := service.Get(r.Context(), caller, orderID)
	if err != nil {
		httperr.Render(w, r, err)

		return
	}

	render.JSON(w, r, found)
}
