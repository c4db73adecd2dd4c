package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBodyBytes = 4 * 1024

var errNoJSONObject = errors.New("bridge: response body contains no JSON object")

// Error is the typed failure raised for any non-success status or unparsable
// body. It carries the HTTP status and the raw body text so callers can
// surface what the Bridge actually said.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("bridge %s failed: %d %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap exposes the underlying transport or decode error when present.
func (e *Error) Unwrap() error { return e.Err }

// Logger defines the logging contract for bridge operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// ClientConfig configures the Bridge client.
type ClientConfig struct {
	// BaseURL is the Bridge REST root, e.g. https://site/wp-json/hp-funnel/v1.
	BaseURL string
	// Origin is sent as the Origin header on every request.
	Origin string
	// HTTPClient overrides the transport; a default with the supplied timeout
	// is built when nil.
	HTTPClient *http.Client
	// Timeout applies to the default transport only.
	Timeout time.Duration
	Logger  Logger
}

// Client is a typed request/response wrapper around the Bridge API. Every
// request is stateless: no cookies or credentials are ever attached, and no
// retries happen here.
type Client struct {
	baseURL    string
	origin     string
	httpClient *http.Client
	logger     Logger
}

// NewClient constructs a Bridge client validating required configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("bridge: base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Client{
		baseURL:    baseURL,
		origin:     strings.TrimSpace(cfg.Origin),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// LookupCustomer resolves an email to the customer's saved addresses and
// loyalty points balance.
func (c *Client) LookupCustomer(ctx context.Context, email string) (Customer, error) {
	var out Customer
	err := c.post(ctx, "/customer", map[string]string{"email": email}, &out)
	return out, err
}

// GetRates fetches shipping quotes for an address and item set.
func (c *Client) GetRates(ctx context.Context, req RatesRequest) (RatesResponse, error) {
	var out RatesResponse
	err := c.post(ctx, "/shipstation/rates", req, &out)
	return out, err
}

// GetTotals asks the Bridge for the authoritative totals for the supplied
// pricing context.
func (c *Client) GetTotals(ctx context.Context, req TotalsRequest) (Totals, error) {
	var out Totals
	err := c.post(ctx, "/totals", req, &out)
	return out, err
}

// CreateIntent creates a payment intent for the full checkout context.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	var out Intent
	err := c.post(ctx, "/checkout/intent", req, &out)
	return out, err
}

// GetStatus reports the funnel's enablement mode for the current environment.
func (c *Client) GetStatus(ctx context.Context, funnelID string) (Status, error) {
	var out Status
	err := c.get(ctx, "/status?funnel_id="+url.QueryEscape(funnelID), &out)
	return out, err
}

// ChargeUpsell submits a one-time additional charge against a parent order.
func (c *Client) ChargeUpsell(ctx context.Context, req UpsellChargeRequest) (UpsellChargeResponse, error) {
	var out UpsellChargeResponse
	err := c.post(ctx, "/upsell/charge", req, &out)
	return out, err
}

// ResolveOrderByPaymentIntent maps an opaque payment-intent reference to the
// order id once the Bridge has persisted the order. A zero order id means the
// order is not resolvable yet.
func (c *Client) ResolveOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (ResolveOrderResponse, error) {
	var out ResolveOrderResponse
	err := c.get(ctx, "/orders/resolve?pi_id="+url.QueryEscape(paymentIntentID), &out)
	return out, err
}

// GetOrderSummary fetches the finalized order by id.
func (c *Client) GetOrderSummary(ctx context.Context, orderID int64) (OrderSummary, error) {
	var out OrderSummary
	err := c.get(ctx, "/orders/"+strconv.FormatInt(orderID, 10)+"/summary", &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Op: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &Error{Op: path, Err: err}
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger(req.Context(), "bridge.request_failed", map[string]any{
			"op":    op,
			"error": err.Error(),
		})
		return &Error{Op: op, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return &Error{Op: op, StatusCode: res.StatusCode, Err: err}
	}

	c.logger(req.Context(), "bridge.request_completed", map[string]any{
		"op":      op,
		"status":  res.StatusCode,
		"latency": time.Since(start).String(),
	})

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &Error{Op: op, StatusCode: res.StatusCode, Body: truncateBody(body)}
	}

	if out == nil {
		return nil
	}
	if err := decodeBody(body, out); err != nil {
		return &Error{Op: op, StatusCode: res.StatusCode, Body: truncateBody(body), Err: err}
	}
	return nil
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes]
	}
	return text
}

// HostedConfirmURL builds the hosted payment confirmation URL carrying the
// client secret, publishable key, and the success-return URL.
func HostedConfirmURL(siteBase, clientSecret, publishable, successURL string) string {
	base := strings.TrimRight(strings.TrimSpace(siteBase), "/")
	u, err := url.Parse(base + "/")
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("hp_fb_confirm", "1")
	q.Set("cs", clientSecret)
	q.Set("pk", publishable)
	q.Set("succ", successURL)
	u.RawQuery = q.Encode()
	return u.String()
}
