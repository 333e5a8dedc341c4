package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/remote"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/currency"
)

type nopObserver struct{}

func (nopObserver) RemoteAttempt(context.Context, string, string, time.Duration) {}

func newTestClient(url string, maxAttempts int) *Client {
	caller := remote.NewCaller(remote.Config{
		Service:      "payment",
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
	}, nopObserver{}, apperrors.IsTransient, remote.WithSleep(
		func(context.Context, time.Duration) error { return nil },
	))

	return NewClient(url, caller)
}

func TestChargeSuccess(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.OrderID != 5 || req.AmountCents != 5000 || req.Currency != "USD" {
			t.Errorf("request = %+v", req)
		}
		gotKey = req.IdempotencyKey
		_ = json.NewEncoder(w).Encode(chargeResponse{
			Success:       true,
			TransactionID: "txn-123",
			Status:        "captured",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	charge, err := client.Charge(context.Background(), 5, 1, 5000, currency.CurrencyUSD)
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if charge.TransactionID != "txn-123" {
		t.Errorf("Charge() = %+v", charge)
	}
	if gotKey == "" {
		t.Error("charge request missing idempotency key")
	}
}

func TestChargeDeclinedNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(chargeResponse{Success: false, Status: "declined"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 4)
	_, err := client.Charge(context.Background(), 5, 1, 5000, currency.CurrencyUSD)
	if !errors.Is(err, apperrors.ErrPaymentFailed) {
		t.Fatalf("Charge() = %v, want payment failed", err)
	}
	if hits.Load() != 1 {
		t.Errorf("declined charge retried: %d requests, want 1", hits.Load())
	}
}

func TestChargeIdempotencyKeyStableAcrossRetries(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chargeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		keys = append(keys, req.IdempotencyKey)
		if len(keys) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(chargeResponse{Success: true, TransactionID: "txn-9", Status: "captured"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	if _, err := client.Charge(context.Background(), 5, 1, 5000, currency.CurrencyUSD); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("requests = %d, want 3", len(keys))
	}
	if keys[0] != keys[1] || keys[1] != keys[2] {
		t.Errorf("idempotency key changed across retries: %v", keys)
	}
}
