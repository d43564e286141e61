package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saleorbridge/payment-bridge/internal/logger"
)

// Client stores app private metadata through the Saleor GraphQL API. One
// client is scoped to a single tenant (API URL + app token + app id).
type Client struct {
	apiURL     string
	token      string
	appID      string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(apiURL, token, appID string) *Client {
	return &Client{
		apiURL: apiURL,
		token:  token,
		appID:  appID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.New("metadata"),
	}
}

const getMetafieldQuery = `query AppMetafield($key: String!) {
  app {
    privateMetafield(key: $key)
  }
}`

const updateMetadataMutation = `mutation UpdateAppMetadata($id: ID!, $input: [MetadataInput!]!) {
  updatePrivateMetadata(id: $id, input: $input) {
    errors {
      field
      message
      code
    }
  }
}`

const deleteMetadataMutation = `mutation DeleteAppMetadata($id: ID!, $keys: [String!]!) {
  deletePrivateMetadata(id: $id, keys: $keys) {
    errors {
      field
      message
      code
    }
  }
}`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type mutationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	var result struct {
		Data struct {
			App *struct {
				PrivateMetafield *string `json:"privateMetafield"`
			} `json:"app"`
		} `json:"data"`
		Errors []graphqlError `json:"errors"`
	}

	err := c.execute(ctx, getMetafieldQuery, map[string]interface{}{"key": key}, &result)
	if err != nil {
		return "", false, err
	}
	if len(result.Errors) > 0 {
		return "", false, fmt.Errorf("metadata query failed: %s", result.Errors[0].Message)
	}
	if result.Data.App == nil || result.Data.App.PrivateMetafield == nil {
		return "", false, nil
	}

	return *result.Data.App.PrivateMetafield, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	var result struct {
		Data struct {
			UpdatePrivateMetadata *struct {
				Errors []mutationError `json:"errors"`
			} `json:"updatePrivateMetadata"`
		} `json:"data"`
		Errors []graphqlError `json:"errors"`
	}

	variables := map[string]interface{}{
		"id": c.appID,
		"input": []map[string]string{
			{"key": key, "value": value},
		},
	}

	if err := c.execute(ctx, updateMetadataMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("metadata mutation failed: %s", result.Errors[0].Message)
	}
	if m := result.Data.UpdatePrivateMetadata; m != nil && len(m.Errors) > 0 {
		return fmt.Errorf("metadata mutation rejected: %s (%s)", m.Errors[0].Message, m.Errors[0].Code)
	}

	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	var result struct {
		Data struct {
			DeletePrivateMetadata *struct {
				Errors []mutationError `json:"errors"`
			} `json:"deletePrivateMetadata"`
		} `json:"data"`
		Errors []graphqlError `json:"errors"`
	}

	variables := map[string]interface{}{
		"id":   c.appID,
		"keys": []string{key},
	}

	if err := c.execute(ctx, deleteMetadataMutation, variables, &result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("metadata delete failed: %s", result.Errors[0].Message)
	}
	if m := result.Data.DeletePrivateMetadata; m != nil && len(m.Errors) > 0 {
		return fmt.Errorf("metadata delete rejected: %s (%s)", m.Errors[0].Message, m.Errors[0].Code)
	}

	return nil
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}, response interface{}) error {
	jsonData, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("metadata API returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
