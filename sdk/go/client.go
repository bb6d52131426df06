package roastlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Roastline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// OrderItem is one line of an order.
type OrderItem struct {
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name,omitempty"`
	Kg         float64 `json:"kg"`
}

// Order represents the API order model.
type Order struct {
	ID           string      `json:"id"`
	Channel      string      `json:"channel"`
	ShopID       *string     `json:"shop_id,omitempty"`
	CustomerName *string     `json:"customer_name,omitempty"`
	DeliveryDate string      `json:"delivery_date"`
	Status       string      `json:"status"`
	Note         string      `json:"note,omitempty"`
	CreatedAt    string      `json:"created_at"`
	Items        []OrderItem `json:"items"`
}

// Batch represents a roasting batch.
type Batch struct {
	ID         string  `json:"id"`
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
	Status     string  `json:"status"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// Inventory is the stock snapshot per coffee.
type Inventory struct {
	GreenKg   map[string]float64 `json:"green_kg"`
	RoastedKg map[string]float64 `json:"roasted_kg"`
	UpdatedAt string             `json:"updated_at"`
}

// DemandItem is the open roast demand for one coffee.
type DemandItem struct {
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
}

// ActivityEntry is one audit log line.
type ActivityEntry struct {
	ID     int64          `json:"id"`
	At     string         `json:"at"`
	Action string         `json:"action"`
	Meta   map[string]any `json:"meta"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateOrderRequest holds order creation parameters.
type CreateOrderRequest struct {
	Channel      string      `json:"channel,omitempty"`
	ShopID       string      `json:"shop_id,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	DeliveryDate string      `json:"delivery_date,omitempty"`
	Note         string      `json:"note,omitempty"`
	Items        []OrderItem `json:"items"`
}

// CreateOrder creates an order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, "v0/orders", req, &resp)
	return resp, err
}

// Orders lists all orders.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var resp []Order
	err := c.do(ctx, http.MethodGet, "v0/orders", nil, &resp)
	return resp, err
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodGet, "v0/orders/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AdvanceOrder moves an order one status forward.
func (c *Client) AdvanceOrder(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/orders/%s/advance", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ApproveOrder releases an order for production.
func (c *Client) ApproveOrder(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/orders/%s/approve", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// DeliverOrder delivers an order, consuming roasted stock.
func (c *Client) DeliverOrder(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/orders/%s/deliver", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// DeleteOrder removes an order.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/orders/"+url.PathEscape(id), nil, nil)
}

// CreateBatch plans a roasting batch.
func (c *Client) CreateBatch(ctx context.Context, coffeeID string, kg float64, note string) (Batch, error) {
	body := map[string]any{
		"coffee_id": coffeeID,
		"kg":        kg,
	}
	if note != "" {
		body["note"] = note
	}
	var resp Batch
	err := c.do(ctx, http.MethodPost, "v0/batches", body, &resp)
	return resp, err
}

// Batches lists all batches.
func (c *Client) Batches(ctx context.Context) ([]Batch, error) {
	var resp []Batch
	err := c.do(ctx, http.MethodGet, "v0/batches", nil, &resp)
	return resp, err
}

// AdvanceBatch moves a batch one status forward.
func (c *Client) AdvanceBatch(ctx context.Context, id string) (Batch, error) {
	var resp Batch
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/batches/%s/advance", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// DeleteBatch removes a batch.
func (c *Client) DeleteBatch(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/batches/"+url.PathEscape(id), nil, nil)
}

// Inventory returns the current stock snapshot.
func (c *Client) Inventory(ctx context.Context) (Inventory, error) {
	var resp Inventory
	err := c.do(ctx, http.MethodGet, "v0/inventory", nil, &resp)
	return resp, err
}

// ChangeInventory adjusts stock by a delta.
func (c *Client) ChangeInventory(ctx context.Context, kind, coffeeID string, deltaKg float64, note string) (Inventory, error) {
	body := map[string]any{
		"kind":      kind,
		"coffee_id": coffeeID,
		"delta_kg":  deltaKg,
	}
	if note != "" {
		body["note"] = note
	}
	var resp Inventory
	err := c.do(ctx, http.MethodPost, "v0/inventory/changes", body, &resp)
	return resp, err
}

// Demand returns the open roast demand per coffee.
func (c *Client) Demand(ctx context.Context) ([]DemandItem, error) {
	var resp []DemandItem
	err := c.do(ctx, http.MethodGet, "v0/demand", nil, &resp)
	return resp, err
}

// Activity returns recent activity entries, newest first.
func (c *Client) Activity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	endpoint := "v0/activity"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []ActivityEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
