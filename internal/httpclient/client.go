package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a small JSON-over-HTTP helper shared by the services that call
// plain REST endpoints. Default headers are applied to every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		headers: map[string]string{},
	}
}

// SetHeader sets a default header sent with every request, e.g. an API key.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) Post(ctx context.Context, endpoint string, payload interface{}, response interface{}) error {
	return c.do(ctx, "POST", endpoint, payload, response)
}

func (c *Client) Get(ctx context.Context, endpoint string, response interface{}) error {
	return c.do(ctx, "GET", endpoint, nil, response)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}, response interface{}) error {
	url := c.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
