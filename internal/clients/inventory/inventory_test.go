package inventory

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
		Service:      "inventory",
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
	}, nopObserver{}, apperrors.IsTransient, remote.WithSleep(
		func(context.Context, time.Duration) error { return nil },
	))

	return NewClient(url, caller)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/products/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Product{
			ProductID:     7,
			PriceCents:    2500,
			PriceCurrency: currency.CurrencyUSD,
			Stock:         10,
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	product, err := client.Fetch(context.Background(), 7)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if product.PriceCents != 2500 || product.Stock != 10 {
		t.Errorf("Fetch() = %+v, want price 2500 stock 10", product)
	}
}

func TestFetchBindsRequestedProductID(t *testing.T) {
	// The inventory contract returns price and stock only; the client must
	// not rely on the response echoing the id.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"priceCents":2500,"priceCurrency":"USD","stock":10}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	product, err := client.Fetch(context.Background(), 7)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if product.ProductID != 7 {
		t.Errorf("ProductID = %d, want 7", product.ProductID)
	}
}

func TestFetchNotFoundNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 4)
	_, err := client.Fetch(context.Background(), 99)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Fetch() = %v, want not-found", err)
	}
	if hits.Load() != 1 {
		t.Errorf("not-found retried: %d requests, want 1", hits.Load())
	}
}

func TestFetchServerFaultRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Product{ProductID: 7, PriceCents: 100, PriceCurrency: currency.CurrencyUSD, Stock: 1})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	product, err := client.Fetch(context.Background(), 7)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("requests = %d, want 3", hits.Load())
	}
	if product.PriceCents != 100 {
		t.Errorf("Fetch() = %+v", product)
	}
}

func TestAdjustStockConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var body struct {
			Quantity  int       `json:"quantity"`
			Direction Direction `json:"direction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Quantity != 3 || body.Direction != DirectionDecrease {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	err := client.AdjustStock(context.Background(), 7, 3, DirectionDecrease)
	if !errors.Is(err, apperrors.ErrInsufficientStock) {
		t.Fatalf("AdjustStock() = %v, want insufficient stock", err)
	}
}

func TestAdjustStockIncrease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	if err := client.AdjustStock(context.Background(), 7, 2, DirectionIncrease); err != nil {
		t.Fatalf("AdjustStock() error = %v", err)
	}
}
