package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	return NewClient(srv.URL+"/", 2*time.Second, logger.Discard(), opts...)
}

func TestListProducts_UnifiesVariants(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		gotQuery = r.URL.Query().Get("search")
		io.WriteString(w, `[
			{"id":"a","title":"A","slug":"a","price_cents":2490,"primary_image_url":"/a.jpg","created_at":"2025-06-13T09:00:00Z"},
			{"id":"b","title":"B","slug":"b","price":24.9,"product_images":[{"url":"/b2.jpg","sort_order":2},{"url":"/b1.jpg","sort_order":1}]},
			{"id":"c","title":"C","slug":"c","price":"24.90","image_url":"/c.jpg","created_at":"2025-06-13T09:00:00.123456"},
			{"id":7,"name":"D","slug":"d","price":"1.005","image":"/d.jpg"},
			{"id":"e","title":"E","slug":"e","price":"not-a-number"}
		]`)
	})

	products, err := client.ListProducts(context.Background(), "vita c")
	require.NoError(t, err)
	assert.Equal(t, "vita c", gotQuery)
	require.Len(t, products, 4)

	for _, p := range products[:3] {
		assert.Equal(t, int64(2490), p.PriceCents, p.ID)
	}
	assert.Equal(t, "/a.jpg", products[0].ImageURL)
	assert.Equal(t, "/b1.jpg", products[1].ImageURL)
	assert.Equal(t, "/c.jpg", products[2].ImageURL)
	assert.Equal(t, time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC), products[0].CreatedAt)
	assert.False(t, products[2].CreatedAt.IsZero())

	assert.Equal(t, "7", products[3].ID)
	assert.Equal(t, "D", products[3].Title)
	assert.Equal(t, int64(101), products[3].PriceCents)
	assert.Equal(t, "/d.jpg", products[3].ImageURL)
}

func TestListProducts_NoSearchParamWhenEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		io.WriteString(w, `[]`)
	})

	products, err := client.ListProducts(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestPickImage_PrimaryWins(t *testing.T) {
	url, ok := pickImage([]productImageDTO{
		{URL: "/first.jpg", SortOrder: 0},
		{ImageURL: "/primary.jpg", SortOrder: 5, IsPrimary: true},
	})
	assert.True(t, ok)
	assert.Equal(t, "/primary.jpg", url)

	_, ok = pickImage(nil)
	assert.False(t, ok)
}

func TestGetProductBySlug(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/products/provita":
			io.WriteString(w, `{"id":"provita","title":"ProVita","slug":"provita","price":17.9}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail":"Product not found"}`)
		}
	})

	p, err := client.GetProductBySlug(context.Background(), "provita")
	require.NoError(t, err)
	assert.Equal(t, int64(1790), p.PriceCents)

	_, err = client.GetProductBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Product not found", se.Detail)
}

func TestCreateOrder_SendsSnakeCaseAndDecodes(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{
			"id":"ord-1","status":"new","customer_name":"Ana","customer_phone":"070123456",
			"payment_method":"cash_on_delivery","total_price":"49.80",
			"created_at":"2025-06-13T10:00:00Z","updated_at":"2025-06-13T10:00:00Z",
			"order_items":[{"id":"i1","order_id":"ord-1","product_id":"arthrovita","quantity":2,"price_at_purchase":24.9,
				"product":{"id":"arthrovita","title":"ArthroVita","slug":"arthrovita","price":24.9}}]
		}`)
	})

	req := domain.QuickOrderRequest(domain.Customer{Name: "Ana", Phone: "070123456"}, "arthrovita", 2)
	conf, err := client.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Ana", body["customer_name"])
	assert.Equal(t, "cash_on_delivery", body["payment_method"])
	assert.NotContains(t, body, "customer_email")
	assert.NotContains(t, body, "notes")
	items := body["items"].([]any)
	assert.Equal(t, map[string]any{"product_id": "arthrovita", "quantity": float64(2)}, items[0])

	assert.Equal(t, "ord-1", conf.ID)
	assert.Equal(t, domain.OrderStatusNew, conf.Status)
	assert.Equal(t, int64(4980), conf.TotalCents)
	assert.False(t, conf.Synthetic)
	require.Len(t, conf.Items, 1)
	assert.Equal(t, int64(2490), conf.Items[0].PriceCents)
	require.NotNil(t, conf.Items[0].Product)
	assert.Equal(t, "arthrovita", conf.Items[0].Product.Slug)
}

func TestCreateOrder_ItemsAndCentsVariant(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":1,"status":"new","total_cents":1790,
			"items":[{"product_id":"provita","quantity":1,"price_cents_at_purchase":1790}]}`)
	})

	conf, err := client.CreateOrder(context.Background(), domain.OrderRequest{})
	require.NoError(t, err)
	assert.Equal(t, "1", conf.ID)
	assert.Equal(t, int64(1790), conf.TotalCents)
	require.Len(t, conf.Items, 1)
	assert.Equal(t, int64(1790), conf.Items[0].PriceCents)
}

func TestCreateOrder_UnreadableReplyIsUnconfirmed(t *testing.T) {
	for name, body := range map[string]string{
		"bad total": `{"id":17,"status":"new","total_price":"n/a"}`,
		"not json":  `<html>created</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				io.WriteString(w, body)
			})

			conf, err := client.CreateOrder(context.Background(), domain.OrderRequest{})
			assert.Nil(t, conf)
			assert.ErrorIs(t, err, domain.ErrUnconfirmed)
			var statusErr *StatusError
			assert.False(t, errors.As(err, &statusErr))
		})
	}
}

func TestDo_StatusErrorDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/orders" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"detail":[{"loc":["body","customer_phone"],"msg":"field required"}]}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateOrder(context.Background(), domain.OrderRequest{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, se.Detail, "field required")
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = client.ListProducts(context.Background(), "")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "Bad Gateway", se.Detail)
}

func TestBreaker_OpensOnServerErrorsOnly(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	var transitions []gobreaker.State
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}, WithBreaker(circuitbreaker.Config{ConsecutiveFailures: 2, OpenTimeout: time.Minute},
		func(_ string, _, to gobreaker.State) { transitions = append(transitions, to) }))

	for range 3 {
		_, err := client.GetProductBySlug(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Empty(t, transitions)

	status.Store(http.StatusServiceUnavailable)
	for range 2 {
		_, err := client.ListProducts(context.Background(), "")
		require.Error(t, err)
	}

	_, err := client.ListProducts(context.Background(), "")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestDo_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListProducts(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("  ", time.Second, logger.Discard())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
