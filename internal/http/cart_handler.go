package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/money"
	"github.com/go-chi/chi/v5"
)

// Carts hands out the cart of a session.
type Carts interface {
	Cart(ctx context.Context, sessionID string) *cart.Store
}

type CartHandler struct {
	carts   Carts
	catalog Catalog
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(carts Carts, c Catalog, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: c,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartLineResponse struct {
	Product       ProductResponse `json:"product"`
	Quantity      int             `json:"quantity"`
	SubtotalCents int64           `json:"subtotal_cents"`
}

type CartResponse struct {
	Lines      []CartLineResponse `json:"lines"`
	ItemCount  int                `json:"item_count"`
	TotalCents int64              `json:"total_cents"`
	Total      string             `json:"total"`
	TotalLabel string             `json:"total_label"`
}

func newCartResponse(c domain.Cart) CartResponse {
	resp := CartResponse{
		Lines:      make([]CartLineResponse, len(c.Lines)),
		ItemCount:  c.ItemCount(),
		TotalCents: c.TotalCents(),
	}
	for i, l := range c.Lines {
		resp.Lines[i] = CartLineResponse{
			Product:       newProductResponse(l.Product),
			Quantity:      l.Quantity,
			SubtotalCents: l.SubtotalCents(),
		}
	}
	resp.Total = money.String(resp.TotalCents)
	resp.TotalLabel = money.FormatEUR(resp.TotalCents)
	return resp
}

func (h *CartHandler) store(r *http.Request) *cart.Store {
	return h.carts.Cart(r.Context(), getSessionID(r.Context()))
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newCartResponse(h.store(r).Cart()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 || req.Quantity > domain.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.catalog.ProductByID(ctx, req.ProductID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if product == nil {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}

	store := h.store(r)
	store.AddItem(ctx, *product, req.Quantity)
	respondJSON(w, http.StatusCreated, newCartResponse(store.Cart()))
}

// PUT /api/v1/cart/items/{product_id}
// A quantity of zero removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > domain.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	store := h.store(r)
	if store.Quantity(productID) == 0 {
		respondError(w, http.StatusNotFound, "not_found", "product is not in the cart")
		return
	}
	store.UpdateQuantity(ctx, productID, req.Quantity)
	respondJSON(w, http.StatusOK, newCartResponse(store.Cart()))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store := h.store(r)
	store.RemoveItem(ctx, chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, newCartResponse(store.Cart()))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store := h.store(r)
	store.Clear(ctx)
	respondJSON(w, http.StatusOK, newCartResponse(store.Cart()))
}
