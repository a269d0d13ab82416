package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/money"
)

// Submitter places orders.
type Submitter interface {
	Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error)
}

type CheckoutHandler struct {
	carts     Carts
	submitter Submitter
	timeout   time.Duration
	log       *slog.Logger
}

func NewCheckoutHandler(carts Carts, s Submitter, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		carts:     carts,
		submitter: s,
		timeout:   timeout,
		log:       log,
	}
}

type CheckoutRequestDTO struct {
	domain.Customer
	PaymentMethod string `json:"payment_method,omitempty"`
}

type QuickOrderRequestDTO struct {
	domain.Customer
	PaymentMethod string `json:"payment_method,omitempty"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
}

type OrderResponseDTO struct {
	*domain.OrderConfirmation
	Total      string `json:"total"`
	TotalLabel string `json:"total_label"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store := h.carts.Cart(ctx, getSessionID(ctx))
	lines := store.Lines()
	if len(lines) == 0 {
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
		return
	}

	order := domain.CartOrderRequest(req.Customer, lines)
	order.PaymentMethod = req.PaymentMethod
	conf, ok := h.submit(ctx, w, r, order)
	if !ok {
		return
	}

	store.Deduct(ctx, order.Items)
	respondJSON(w, http.StatusCreated, newOrderResponse(conf))
}

// POST /api/v1/quick-order
// Orders a single product without touching the cart.
func (h *CheckoutHandler) QuickOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req QuickOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	order := domain.QuickOrderRequest(req.Customer, req.ProductID, req.Quantity)
	order.PaymentMethod = req.PaymentMethod
	conf, ok := h.submit(ctx, w, r, order)
	if !ok {
		return
	}
	respondJSON(w, http.StatusCreated, newOrderResponse(conf))
}

func (h *CheckoutHandler) submit(ctx context.Context, w http.ResponseWriter, r *http.Request, order domain.OrderRequest) (*domain.OrderConfirmation, bool) {
	if err := order.Validate(); err != nil {
		handleError(w, r, h.log, err)
		return nil, false
	}

	conf, err := h.submitter.Submit(ctx, order)
	if err != nil {
		handleError(w, r, h.log, err)
		return nil, false
	}
	if conf.Synthetic {
		w.Header().Set("X-Order-Synthetic", "true")
	}
	return conf, true
}

func newOrderResponse(conf *domain.OrderConfirmation) OrderResponseDTO {
	return OrderResponseDTO{
		OrderConfirmation: conf,
		Total:             money.String(conf.TotalCents),
		TotalLabel:        money.FormatEUR(conf.TotalCents),
	}
}
