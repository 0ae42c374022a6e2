// Package client calls a running enrichment service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/entity"
)

// Client posts discovery batches to the enrichment API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBearerToken sends the token on every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithIDToken authenticates with a Google-signed ID token for the base URL,
// for deployments behind Cloud Run IAM. Falls back to a plain client when no
// credentials are available.
func WithIDToken(ctx context.Context) Option {
	return func(c *Client) {
		if idc, err := idtoken.NewClient(ctx, c.baseURL); err == nil {
			c.http = idc
		}
	}
}

// New builds a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url must not be empty")
	}
	c := &Client{baseURL: baseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Minute}
	}
	return c, nil
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("enricher returned %d: %s", e.StatusCode, e.Message)
}

// Enrich submits a batch and returns the enriched businesses.
func (c *Client) Enrich(ctx context.Context, req dto.EnrichRequest) (dto.EnrichResponse, error) {
	var resp dto.EnrichResponse
	err := c.postJSON(ctx, "/enrich", req, &resp)
	return resp, err
}

// Dedupe collapses duplicates server side.
func (c *Client) Dedupe(ctx context.Context, records []entity.BusinessRecord) (dto.DedupeResponse, error) {
	var resp dto.DedupeResponse
	err := c.postJSON(ctx, "/dedupe", dto.DedupeRequest{Businesses: records}, &resp)
	return resp, err
}

// Token exchanges client credentials for a bearer token.
func (c *Client) Token(ctx context.Context, clientID, secret string) (dto.TokenResponse, error) {
	var resp dto.TokenResponse
	err := c.postJSON(ctx, "/auth/token", dto.TokenRequest{ClientID: clientID, ClientSecret: secret}, &resp)
	return resp, err
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && err != io.EOF {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("could not decode response: %w", err)
	}
	if resp.StatusCode >= 400 || envelope.Status == "error" {
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("could not decode data: %w", err)
	}
	return nil
}
