// Package provider talks to the external payment provider's REST API. The
// API follows the hosted-payment-page model: a session is created for a
// checkout, the shopper completes it out of band, and the resulting
// authorization token is exchanged for an order that can later be refunded
// or canceled.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// SessionRequest creates a payment session. All amounts are in the
// provider's minor units.
type SessionRequest struct {
	MerchantReference string      `json:"merchant_reference1"`
	PurchaseCountry   string      `json:"purchase_country,omitempty"`
	PurchaseCurrency  string      `json:"purchase_currency"`
	OrderAmount       int64       `json:"order_amount"`
	OrderTaxAmount    int64       `json:"order_tax_amount"`
	OrderLines        []OrderLine `json:"order_lines"`
	Intent            string      `json:"intent,omitempty"`
}

type OrderLine struct {
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
	TotalAmount    int64  `json:"total_amount"`
	TotalTaxAmount int64  `json:"total_tax_amount"`
	TaxRate        int64  `json:"tax_rate"`
}

type SessionResponse struct {
	SessionID   string `json:"session_id"`
	ClientToken string `json:"client_token"`
	RedirectURL string `json:"redirect_url"`
}

type OrderRequest struct {
	MerchantReference string `json:"merchant_reference1"`
	PurchaseCurrency  string `json:"purchase_currency"`
	OrderAmount       int64  `json:"order_amount"`
	AutoCapture       bool   `json:"auto_capture"`
}

type OrderResponse struct {
	OrderID     string `json:"order_id"`
	FraudStatus string `json:"fraud_status"` // ACCEPTED, PENDING or REJECTED
	RedirectURL string `json:"redirect_url,omitempty"`
}

type RefundRequest struct {
	RefundedAmount int64  `json:"refunded_amount"`
	Description    string `json:"description,omitempty"`
}

type RefundResponse struct {
	RefundID string `json:"refund_id"`
}

// Error is the typed failure returned for any non-2xx provider response,
// carrying the HTTP status and the provider's structured error body.
type Error struct {
	StatusCode    int
	Code          string `json:"error_code"`
	Message       string `json:"error_message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider returned HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// ErrorCodeOrderInProgress marks the 409 returned when an order create races
// a previous attempt for the same authorization; it is retried once.
const ErrorCodeOrderInProgress = "ORDER_IN_PROGRESS"

func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateSession starts a payment session for a checkout.
func (c *Client) CreateSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.doJSON(ctx, "POST", "/payments/v1/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateOrder exchanges an authorization token for an order. A 409
// order-in-progress conflict is retried once; the second attempt normally
// returns the already-created order.
func (c *Client) CreateOrder(ctx context.Context, authorizationToken string, req *OrderRequest) (*OrderResponse, error) {
	path := fmt.Sprintf("/payments/v1/authorizations/%s/order", authorizationToken)

	var resp OrderResponse
	err := c.doJSON(ctx, "POST", path, req, &resp)
	if provErr, ok := err.(*Error); ok && provErr.StatusCode == http.StatusConflict && provErr.Code == ErrorCodeOrderInProgress {
		err = c.doJSON(ctx, "POST", path, req, &resp)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refund refunds part or all of a captured order.
func (c *Client) Refund(ctx context.Context, orderID string, req *RefundRequest) (*RefundResponse, error) {
	path := fmt.Sprintf("/ordermanagement/v1/orders/%s/refunds", orderID)

	var resp RefundResponse
	if err := c.doJSON(ctx, "POST", path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelOrder cancels an authorized, uncaptured order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/ordermanagement/v1/orders/%s/cancel", orderID)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, response interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		provErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, provErr); err != nil || provErr.Message == "" {
			provErr.Message = string(respBody)
		}
		return provErr
	}

	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
