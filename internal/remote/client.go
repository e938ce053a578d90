// Package remote implements the RemoteApplier against the DineEase backend
// REST API. Each replay carries the mutation id as an Idempotency-Key header
// so the backend can deduplicate replays whose acknowledgment was lost.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
)

// ErrRemote marks a failed remote-apply call: connectivity loss, timeout,
// or server-side rejection. The taxonomy does not distinguish transport
// errors from validation rejections; both are retried up to the ceiling.
var ErrRemote = errors.New("remote apply failed")

// Client is the HTTP transport to the backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.dineease.example".
	BaseURL string

	// Timeout bounds each request (default: 10s).
	Timeout time.Duration

	// Logger for request activity (default: stderr logger).
	Logger *log.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}, nil
}

// CreateOrder implements syncer.RemoteApplier.
func (c *Client) CreateOrder(ctx context.Context, mutationID string, p *model.OrderPayload) error {
	return c.post(ctx, "/api/orders", mutationID, p)
}

// CreateCustomer implements syncer.RemoteApplier.
func (c *Client) CreateCustomer(ctx context.Context, mutationID string, p *model.CustomerPayload) error {
	return c.post(ctx, "/api/customers", mutationID, p)
}

// CreateExpense implements syncer.RemoteApplier.
func (c *Client) CreateExpense(ctx context.Context, mutationID string, p *model.ExpensePayload) error {
	return c.post(ctx, "/api/expenses", mutationID, p)
}

// UpdateTableStatus implements syncer.RemoteApplier.
func (c *Client) UpdateTableStatus(ctx context.Context, mutationID string, p *model.TableStatusPayload) error {
	return c.post(ctx, "/api/tables/status", mutationID, p)
}

// Probe reports backend reachability for the network monitor. Any 2xx from
// the health endpoint counts as online.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// FetchProducts pulls the product catalog for cache population.
func (c *Client) FetchProducts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	if err := c.get(ctx, "/api/products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCustomers pulls the customer list for cache population.
func (c *Client) FetchCustomers(ctx context.Context) ([]model.Customer, error) {
	var out []model.Customer
	if err := c.get(ctx, "/api/customers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchTables pulls the table list for cache population.
func (c *Client) FetchTables(ctx context.Context) ([]model.Table, error) {
	var out []model.Table
	if err := c.get(ctx, "/api/tables", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// post sends one mutation payload. Non-2xx responses are remote failures.
func (c *Client) post(ctx context.Context, path, mutationID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", mutationID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrRemote, path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: POST %s returned %d", ErrRemote, path, resp.StatusCode)
	}

	return nil
}

// get fetches and decodes a JSON resource.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrRemote, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: GET %s returned %d", ErrRemote, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}
