package httpauth

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/auth"
)

// Headers set by the API gateway after it has verified the caller's token.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// CallerFromRequest reads the authenticated caller identity from the
// gateway headers. A missing or malformed identity is an authentication
// failure, not a validation one.
func CallerFromRequest(r *http.Request) (auth.Caller, error) {
	rawID := r.Header.Get(HeaderUserID)
	if rawID == "" {
		return auth.Caller{}, fmt.Errorf("missing %s header: %w", HeaderUserID, apperrors.ErrUnauthenticated)
	}

	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID <= 0 {
		return auth.Caller{}, fmt.Errorf("malformed %s header: %w", HeaderUserID, apperrors.ErrUnauthenticated)
	}

	role := auth.Role(r.Header.Get(HeaderUserRole))
	switch role {
	case auth.RoleAdmin:
	case auth.RoleUser, "":
		role = auth.RoleUser
	default:
		return auth.Caller{}, fmt.Errorf("unknown role %q: %w", role, apperrors.ErrUnauthenticated)
	}

	return auth.Caller{UserID: userID, Role: role}, nil
}
