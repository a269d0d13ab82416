package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/money"
	"github.com/go-chi/chi/v5"
)

// Catalog is the product data the handlers read.
type Catalog interface {
	FetchProducts(ctx context.Context, query string) ([]domain.Product, error)
	FetchProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ProductByID(ctx context.Context, id string) (*domain.Product, error)
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
	log     *slog.Logger
}

func NewProductHandler(c Catalog, timeout time.Duration, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		timeout: timeout,
		log:     log,
	}
}

type ProductResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Price       string    `json:"price"`
	PriceLabel  string    `json:"price_label"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Count    int               `json:"count"`
}

func newProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Price:       money.String(p.PriceCents),
		PriceLabel:  money.FormatEUR(p.PriceCents),
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
}

// GET /api/v1/products?search=&sort=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := r.URL.Query()
	products, err := h.catalog.FetchProducts(ctx, query.Get("search"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	products = catalog.SortProducts(products, catalog.ParseSortOrder(query.Get("sort")))

	resp := ProductsResponse{Products: make([]ProductResponse, len(products)), Count: len(products)}
	for i, p := range products {
		resp.Products[i] = newProductResponse(p)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/products/{slug}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.FetchProductBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if product == nil {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, newProductResponse(*product))
}
