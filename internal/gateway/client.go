// Package gateway is the HTTP client for the remote session/stats gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized marks an authentication failure: an expired or invalid
// credential. Callers must prompt re-authentication instead of retrying.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Status int
	Detail string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway: %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("gateway: %d", e.Status)
}

// Unwrap classifies 401 responses and explicit expiry markers as
// authentication failures.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || strings.Contains(strings.ToLower(e.Detail), "expired") {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to the remote gateway.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient constructs a gateway client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// do performs one JSON round trip. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := ""
		var eb errorBody
		if derr := json.NewDecoder(resp.Body).Decode(&eb); derr == nil {
			detail = eb.Detail
			if detail == "" {
				detail = eb.Message
			}
		}
		return &StatusError{Status: resp.StatusCode, Detail: detail}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
