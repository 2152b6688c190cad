package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// VerificationResult is the gateway's confirmation of one transaction.
// Amount is in minor units of Currency.
type VerificationResult struct {
	Success              bool            `json:"success"`
	Amount               int64           `json:"amount"`
	Currency             string          `json:"currency"`
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	RawPayload           json.RawMessage `json:"raw_payload,omitempty"`
}

// Verifier confirms transactions with the external payment gateway.
// Implementations must not be called while holding a wallet lock.
type Verifier interface {
	Verify(ctx context.Context, transactionRef string) (*VerificationResult, error)
}

// Client verifies transactions against the gateway's REST API
type Client struct {
	host       string
	secretKey  string
	httpClient *http.Client
}

func NewClient(host, secretKey string, timeoutSeconds int) *Client {
	return &Client{
		host:      host,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64  `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"` // minor units
		Currency string `json:"currency"`
	} `json:"data"`
}

// Verify calls GET /transaction/verify/{reference}. A non-200 status or
// a transport error surfaces as an error; the caller maps both to a
// verification failure with no wallet mutation.
func (c *Client) Verify(ctx context.Context, transactionRef string) (*VerificationResult, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.host, url.PathEscape(transactionRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", res.StatusCode)
	}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &VerificationResult{
		Success:              resp.Status && resp.Data.Status == "success",
		Amount:               resp.Data.Amount,
		Currency:             resp.Data.Currency,
		GatewayTransactionID: fmt.Sprintf("%d", resp.Data.ID),
		RawPayload:           body,
	}, nil
}
