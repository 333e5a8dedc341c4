package order

import (
	"errors"
	"testing"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusPaid, StatusProcessing, true},
		{StatusPaid, StatusCancelled, true},
		{StatusPaid, StatusFailed, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusFailed, StatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusDelivered, StatusCancelled, StatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	open := []Status{StatusPending, StatusPaid, StatusProcessing, StatusShipped}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("paid"); err != nil {
		t.Errorf("ParseStatus(paid) unexpected error: %v", err)
	}

	_, err := ParseStatus("refunded")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("ParseStatus(refunded) = %v, want validation error", err)
	}
}

func TestShippingAddressValidate(t *testing.T) {
	full := ShippingAddress{
		Street:     "1 Main St",
		City:       "Springfield",
		State:      "IL",
		Country:    "US",
		PostalCode: "62701",
	}
	if err := full.Validate(); err != nil {
		t.Errorf("full address should validate, got %v", err)
	}

	// State is optional; not every country has one.
	noState := full
	noState.State = ""
	if err := noState.Validate(); err != nil {
		t.Errorf("address without state should validate, got %v", err)
	}

	noCity := full
	noCity.City = ""
	if err := noCity.Validate(); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("address without city = %v, want validation error", err)
	}
}
