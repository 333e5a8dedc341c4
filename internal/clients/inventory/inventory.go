package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/remote"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/currency"
)

// Direction selects whether a stock adjustment adds or removes units.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Product is the availability snapshot the catalog service returns.
type Product struct {
	ProductID     int64             `json:"productId"`
	PriceCents    int64             `json:"priceCents"`
	PriceCurrency currency.Currency `json:"priceCurrency"`
	Stock         int               `json:"stock"`
}

// Client calls the catalog service's inventory endpoints through the shared
// retrying caller.
type Client struct {
	baseURL string
	httpc   *http.Client
	caller  *remote.Caller
}

// NewClient creates an inventory client against baseURL.
func NewClient(baseURL string, caller *remote.Caller) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{},
		caller:  caller,
	}
}

// Fetch returns the current price and stock of a product.
func (c *Client) Fetch(ctx context.Context, productID int64) (Product, error) {
	return remote.Call(ctx, c.caller, "fetch_product", func(ctx context.Context) (Product, error) {
		return c.fetch(ctx, productID)
	})
}

// AdjustStock moves stock of a product up or down by quantity.
func (c *Client) AdjustStock(ctx context.Context, productID int64, quantity int, direction Direction) error {
	return c.caller.Do(ctx, "adjust_stock", func(ctx context.Context) error {
		return c.adjustStock(ctx, productID, quantity, direction)
	})
}

func (c *Client) fetch(ctx context.Context, productID int64) (Product, error) {
	url := fmt.Sprintf("%s/api/v1/products/%d", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Product{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Product{}, apperrors.Transient(fmt.Errorf("fetch product %d: %w", productID, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp, productID); err != nil {
		return Product{}, err
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return Product{}, fmt.Errorf("failed to decode product response: %w", err)
	}
	// The response carries price and stock only; the id is ours.
	product.ProductID = productID

	return product, nil
}

func (c *Client) adjustStock(ctx context.Context, productID int64, quantity int, direction Direction) error {
	body, err := json.Marshal(map[string]any{
		"quantity":  quantity,
		"direction": direction,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal adjust request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/products/%d/stock", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return apperrors.Transient(fmt.Errorf("adjust stock for product %d: %w", productID, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp, productID)
}

// classifyStatus maps inventory responses onto the error taxonomy: 404 is
// not-found, 409 is insufficient stock, other 4xx are validation faults,
// and everything 5xx is transient.
func classifyStatus(resp *http.Response, productID int64) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("product %d: %w", productID, apperrors.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("product %d: %w", productID, apperrors.ErrInsufficientStock)
	case resp.StatusCode < 500:
		return apperrors.Validationf("inventory rejected request for product %d with status %d", productID, resp.StatusCode)
	default:
		return apperrors.Transient(fmt.Errorf("inventory returned status %d for product %d", resp.StatusCode, productID))
	}
}
