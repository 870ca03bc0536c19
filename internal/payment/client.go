package payment

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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	successCode          = "00"
	maxDescriptionLength = 25
	defaultTimeout       = 10 * time.Second
	defaultMaxRetries    = 3
)

// Config holds the gateway credentials and redirect targets.
type Config struct {
	BaseURL        string
	ClientID       string
	APIKey         string
	ChecksumKey    string
	ReturnURL      string
	CancelURL      string
	AmountExponent int32
	Timeout        time.Duration
	MaxRetries     uint64
}

// APIError is a failure reported by the gateway, either as a non-2xx status or as a
// non-success code inside a 2xx envelope.
type APIError struct {
	StatusCode int
	Code       string
	Desc       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment gateway error: status %d, code %s: %s", e.StatusCode, e.Code, e.Desc)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to a PayOS-style payment gateway.
type Client struct {
	httpClient *http.Client
	cfg        Config
	newBackOff func() backoff.BackOff
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBackOff sets the retry policy used for status lookups.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg: cfg,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type createRequest struct {
	OrderCode   int64        `json:"orderCode"`
	Amount      int64        `json:"amount"`
	Description string       `json:"description"`
	Items       []itemRecord `json:"items,omitempty"`
	CancelURL   string       `json:"cancelUrl"`
	ReturnURL   string       `json:"returnUrl"`
	Signature   string       `json:"signature"`
}

type itemRecord struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type createResponse struct {
	CheckoutURL   string `json:"checkoutUrl"`
	PaymentLinkID string `json:"paymentLinkId"`
}

type statusResponse struct {
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amountPaid"`
}

type cancelRequest struct {
	CancellationReason string `json:"cancellationReason,omitempty"`
}

// CreatePaymentLink registers a checkout for the order and returns its redirect URL.
func (c *Client) CreatePaymentLink(ctx context.Context, req ports.PaymentLinkRequest) (ports.PaymentLink, error) {
	description := req.Description
	if len(description) > maxDescriptionLength {
		description = description[:maxDescriptionLength]
	}

	amount := c.toMinorUnits(req.Amount)
	body := createRequest{
		OrderCode:   req.OrderCode,
		Amount:      amount,
		Description: description,
		CancelURL:   c.cfg.CancelURL,
		ReturnURL:   c.cfg.ReturnURL,
		Signature:   Sign(c.cfg.ChecksumKey, amount, c.cfg.CancelURL, description, req.OrderCode, c.cfg.ReturnURL),
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, itemRecord{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    c.toMinorUnits(item.Price),
		})
	}

	var resp createResponse
	if err := c.do(ctx, http.MethodPost, []string{"v2", "payment-requests"}, body, &resp); err != nil {
		return ports.PaymentLink{}, fmt.Errorf("create payment link for order %d: %w", req.OrderCode, err)
	}
	if resp.CheckoutURL == "" {
		return ports.PaymentLink{}, fmt.Errorf("create payment link for order %d: empty checkout url", req.OrderCode)
	}

	return ports.PaymentLink{URL: resp.CheckoutURL, TransactionID: resp.PaymentLinkID}, nil
}

// GetPaymentStatus returns the gateway's authoritative status. Transient failures are retried.
func (c *Client) GetPaymentStatus(ctx context.Context, orderCode int64) (domain.PaymentStatus, error) {
	var resp statusResponse
	path := []string{"v2", "payment-requests", strconv.FormatInt(orderCode, 10)}

	op := func() error {
		err := c.do(ctx, http.MethodGet, path, nil, &resp)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return domain.PaymentStatus{}, fmt.Errorf("get payment status for order %d: %w", orderCode, err)
	}

	return domain.PaymentStatus{
		State:      domain.PaymentState(resp.Status),
		AmountPaid: c.fromMinorUnits(resp.AmountPaid),
	}, nil
}

// CancelPayment invalidates the order's payment link.
func (c *Client) CancelPayment(ctx context.Context, orderCode int64, reason string) error {
	path := []string{"v2", "payment-requests", strconv.FormatInt(orderCode, 10), "cancel"}
	if err := c.do(ctx, http.MethodPost, path, cancelRequest{CancellationReason: reason}, nil); err != nil {
		return fmt.Errorf("cancel payment for order %d: %w", orderCode, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, path []string, body, out any) error {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path...)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-client-id", c.cfg.ClientID)
	req.Header.Set("x-api-key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Desc: env.Desc}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if env.Code != successCode {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Desc: env.Desc}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(c.cfg.AmountExponent).Round(0).IntPart()
}

func (c *Client) fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -c.cfg.AmountExponent)
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
