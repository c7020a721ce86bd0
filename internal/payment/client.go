package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Client talks to the external payment provider. Checkout treats a charge as
// all-or-nothing; there is no retry or async settlement here.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type chargeRequest struct {
	OrderNumber string `json:"order_number"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
}

// Charge submits the order total in cents and returns the provider's
// transaction id. A 402 from the provider maps to ErrPaymentDeclined.
func (c *Client) Charge(ctx context.Context, orderNumber string, amount int64) (string, error) {
	data, err := json.Marshal(chargeRequest{
		OrderNumber: orderNumber,
		Amount:      amount,
		Currency:    "USD",
	})
	if err != nil {
		return "", fmt.Errorf("marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charge", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("charge order %s: %w", orderNumber, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusPaymentRequired {
		return "", fmt.Errorf("%w: provider rejected charge for order %s", domain.ErrPaymentDeclined, orderNumber)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment provider returned status %d for order %s", resp.StatusCode, orderNumber)
	}

	var body chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode charge response: %w", err)
	}
	if body.TransactionID == "" {
		return "", fmt.Errorf("payment provider returned empty transaction id for order %s", orderNumber)
	}

	return body.TransactionID, nil
}
