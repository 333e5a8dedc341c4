package listorders

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/auth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/services/ordersvc"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httpauth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/httperr"
)

// service is an interface for the service layer.
type service interface {
	List(ctx context.Context, caller auth.Caller, filter ordersvc.ListFilter, page, limit int) (*ordersvc.Page, error)
}

// ListOrders handles the list orders request. Filters beyond the caller's
// own scope are honored for administrators only; the service layer decides.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	caller, err := httpauth.CallerFromRequest(r)
	if err != nil {
		httperr.Render(w, r, err)

		return
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	filter := ordersvc.ListFilter{}
	if raw := query.Get("userId"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			httperr.Render(w, r, apperrors.Validationf("userId must be a positive integer"))

			return
		}
		filter.UserID = userID
	}
	if raw := query.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := order.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				httperr.Render(w, r, err)

				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	result, err := service.List(r.Context(), caller, filter, page, limit)
	if err != nil {
		httperr.Render(w, r, err)

		return
	}

	render.JSON(w, r, result)
}
