package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/remote"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/currency"
)

// Charge is the payment gateway's record of a completed charge attempt.
type Charge struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

type chargeRequest struct {
	OrderID        int64  `json:"orderId"`
	UserID         int64  `json:"userId"`
	AmountCents    int64  `json:"amountCents"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type chargeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// Client calls the payment gateway through the shared retrying caller.
type Client struct {
	baseURL string
	httpc   *http.Client
	caller  *remote.Caller
}

// NewClient creates a payment client against baseURL.
func NewClient(baseURL string, caller *remote.Caller) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{},
		caller:  caller,
	}
}

// Charge bills the user for the given amount. The idempotency key is fixed
// across retries of one invocation, so a retried request never double
// charges. A charge succeeds only when the gateway reports success.
func (c *Client) Charge(ctx context.Context, orderID, userID, amountCents int64, cur currency.Currency) (Charge, error) {
	req := chargeRequest{
		OrderID:        orderID,
		UserID:         userID,
		AmountCents:    amountCents,
		Currency:       cur.String(),
		IdempotencyKey: uuid.NewString(),
	}

	return remote.Call(ctx, c.caller, "charge", func(ctx context.Context) (Charge, error) {
		return c.charge(ctx, req)
	})
}

func (c *Client) charge(ctx context.Context, req chargeRequest) (Charge, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Charge{}, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/payments", bytes.NewReader(body))
	if err != nil {
		return Charge{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Charge{}, apperrors.Transient(fmt.Errorf("charge order %d: %w", req.OrderID, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Charge{}, apperrors.Transient(fmt.Errorf("payment gateway returned status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		return Charge{}, fmt.Errorf("payment gateway rejected charge with status %d: %w", resp.StatusCode, apperrors.ErrPaymentFailed)
	}

	var chargeResp chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&chargeResp); err != nil {
		return Charge{}, fmt.Errorf("failed to decode charge response: %w", err)
	}

	if !chargeResp.Success {
		return Charge{}, fmt.Errorf("charge declined with status %q: %w", chargeResp.Status, apperrors.ErrPaymentFailed)
	}

	return Charge{
		TransactionID: chargeResp.TransactionID,
		Status:        chargeResp.Status,
	}, nil
}
