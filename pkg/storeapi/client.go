package storeapi

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

	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	defaultTimezone             = "Asia/Ho_Chi_Minh"
	orderDateLayout             = "2006-01-02T15:04:05"
	errorBodyReadLimit    int64 = 16 * 1024
	responseBodyReadLimit int64 = 8 * 1024 * 1024
)

var errBaseURLRequired = errors.New("store api base url is required")

// Client talks to the store backend that owns the catalog, customers and orders.
type Client struct {
	httpClient *http.Client
	baseURL    string
	location   *time.Location
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithTimezone sets the location order dates are rendered in.
func WithTimezone(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// NewClient builds a store backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.location == nil {
		loc, err := time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		client.location = loc
	}

	return client, nil
}

// ListProducts fetches the full product catalog.
func (c *Client) ListProducts(ctx context.Context, token string) ([]Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products/", token, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	products, err := decodeList[Product](body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode products")
	}
	return products, nil
}

// ListCustomers fetches every registered customer.
func (c *Client) ListCustomers(ctx context.Context, token string) ([]Customer, error) {
	body, err := c.do(ctx, http.MethodGet, "/customers/", token, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	customers, err := decodeList[Customer](body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode customers")
	}
	return customers, nil
}

// CreateOrder submits a completed sale. Non-2xx answers surface as *APIError
// inside a SUBMISSION_FAILED error; nothing is retried.
func (c *Client) CreateOrder(ctx context.Context, token string, order OrderCreate) (*Order, error) {
	payload, err := json.Marshal(c.orderBody(order))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal order")
	}

	body, err := c.do(ctx, http.MethodPost, "/orders/", token, payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, "create order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	var created Order
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode created order")
		}
	}
	return &created, nil
}

func (c *Client) orderBody(order OrderCreate) orderCreateBody {
	items := make([]orderItemBody, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemBody{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: json.Number(item.UnitPrice.String()),
			Discount:  json.Number(item.Discount.String()),
		})
	}
	return orderCreateBody{
		UserID:        order.UserID,
		CustomerID:    order.CustomerID,
		OrderDate:     order.OrderDate.In(c.location).Format(orderDateLayout),
		TotalAmount:   json.Number(order.TotalAmount.String()),
		Note:          order.Note,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		Items:         items,
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if trimmed := strings.TrimSpace(token); trimmed != "" {
		req.Header.Set("Authorization", "Bearer "+trimmed)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, newAPIError(resp.StatusCode, raw)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// decodeList accepts a bare JSON array or one wrapped in "data" or "items".
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var wrapper struct {
		Data  json.RawMessage `json:"data"`
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	inner := wrapper.Data
	if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
		inner = wrapper.Items
	}
	if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
		return []T{}, nil
	}

	var out []T
	if err := json.Unmarshal(inner, &out); err != nil {
		return nil, err
	}
	return out, nil
}
