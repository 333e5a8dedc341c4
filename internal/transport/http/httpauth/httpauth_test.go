package httpauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/auth"
)

func TestCallerFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		role    string
		want    auth.Caller
		wantErr bool
	}{
		{"user", "42", "user", auth.Caller{UserID: 42, Role: auth.RoleUser}, false},
		{"admin", "1", "admin", auth.Caller{UserID: 1, Role: auth.RoleAdmin}, false},
		{"role defaults to user", "7", "", auth.Caller{UserID: 7, Role: auth.RoleUser}, false},
		{"missing id", "", "user", auth.Caller{}, true},
		{"malformed id", "abc", "user", auth.Caller{}, true},
		{"negative id", "-3", "user", auth.Caller{}, true},
		{"unknown role", "42", "superuser", auth.Caller{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.userID != "" {
				req.Header.Set(HeaderUserID, tt.userID)
			}
			if tt.role != "" {
				req.Header.Set(HeaderUserRole, tt.role)
			}

			caller, err := CallerFromRequest(req)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrUnauthenticated) {
					t.Fatalf("CallerFromRequest() error = %v, want unauthenticated", err)
				}

				return
			}
			if err != nil {
				t.Fatalf("CallerFromRequest() error = %v", err)
			}
			if caller != tt.want {
				t.Errorf("caller = %+v, want %+v", caller, tt.want)
			}
		})
	}
}
