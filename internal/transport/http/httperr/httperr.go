package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Render writes err as a JSON error response with the status from the
// error taxonomy. Internal failures are logged and returned with a
// generic message so storage details never leak to clients.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: message})
}

// RenderValidation wraps err as a validation failure before rendering.
// Used for malformed request bodies and parameters.
func RenderValidation(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, apperrors.ErrValidation) {
		err = apperrors.Validationf("%s", err.Error())
	}
	Render(w, r, err)
}
