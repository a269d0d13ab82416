// Package api is the HTTP client for the remote product and order service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	breakerName    = "product-api"
	maxBodySize    = 4 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *slog.Logger
}

type options struct {
	httpClient *http.Client
	breaker    circuitbreaker.Config
	listeners  []circuitbreaker.StateListener
}

type Option func(*options)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithBreaker(cfg circuitbreaker.Config, listeners ...circuitbreaker.StateListener) Option {
	return func(o *options) {
		o.breaker = cfg
		o.listeners = append(o.listeners, listeners...)
	}
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	o := options{breaker: circuitbreaker.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		http:    o.httpClient,
		breaker: circuitbreaker.New[[]byte](breakerName, o.breaker, log, countsAsSuccess, o.listeners...),
		log:     log,
	}
}

// countsAsSuccess keeps caller cancellations and client errors from opening
// the breaker; only transport failures and 5xx do.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}

// ListProducts calls GET /api/products, passing search when non-empty.
func (c *Client) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	path := "/api/products"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var dtos []productDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(dtos))
	for _, d := range dtos {
		p, err := d.toDomain()
		if err != nil {
			c.log.WarnContext(ctx, "skipping malformed product", "error", err)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// GetProductBySlug calls GET /api/products/{slug}. A 404 yields an error
// matching ErrNotFound.
func (c *Client) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(slug), nil)
	if err != nil {
		return nil, err
	}

	var d productDTO
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	p, err := d.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateOrder calls POST /api/orders.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	payload, err := json.Marshal(newOrderRequestDTO(req))
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/orders", payload)
	if err != nil {
		return nil, err
	}

	// Past this point the order exists remotely, so decode failures wrap
	// domain.ErrUnconfirmed rather than looking like an unreachable service.
	var d orderDTO
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("%w: decode order: %w", domain.ErrUnconfirmed, err)
	}
	conf, err := d.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnconfirmed, err)
	}
	return conf, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			d := detail(body)
			if d == "" {
				d = http.StatusText(resp.StatusCode)
			}
			return nil, &StatusError{StatusCode: resp.StatusCode, Detail: d}
		}
		return body, nil
	})
}
