package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/money"
)

// The product service has shipped several response layouts over time. The
// DTOs below accept all of them and collapse to one domain shape.

type productDTO struct {
	ID              flexString        `json:"id"`
	Title           string            `json:"title"`
	Name            string            `json:"name"`
	Slug            string            `json:"slug"`
	Description     string            `json:"description"`
	PriceCents      *int64            `json:"price_cents"`
	Price           json.RawMessage   `json:"price"`
	PrimaryImageURL string            `json:"primary_image_url"`
	ProductImages   []productImageDTO `json:"product_images"`
	ImageURL        string            `json:"image_url"`
	Image           string            `json:"image"`
	CreatedAt       string            `json:"created_at"`
}

type productImageDTO struct {
	URL       string `json:"url"`
	ImageURL  string `json:"image_url"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

func (i productImageDTO) location() string {
	if i.URL != "" {
		return i.URL
	}
	return i.ImageURL
}

func (d productDTO) toDomain() (domain.Product, error) {
	p := domain.Product{
		ID:          string(d.ID),
		Title:       d.Title,
		Slug:        d.Slug,
		Description: d.Description,
		ImageURL:    d.imageURL(),
		CreatedAt:   parseTime(d.CreatedAt),
	}
	if p.Title == "" {
		p.Title = d.Name
	}

	switch {
	case d.PriceCents != nil:
		if *d.PriceCents < 0 {
			return p, fmt.Errorf("product %s: %w", p.ID, money.ErrNegative)
		}
		p.PriceCents = *d.PriceCents
	default:
		cents, err := money.FromJSON(d.Price)
		if err != nil {
			return p, fmt.Errorf("product %s: %w", p.ID, err)
		}
		p.PriceCents = cents
	}
	return p, nil
}

func (d productDTO) imageURL() string {
	if d.PrimaryImageURL != "" {
		return d.PrimaryImageURL
	}
	if img, ok := pickImage(d.ProductImages); ok {
		return img
	}
	if d.ImageURL != "" {
		return d.ImageURL
	}
	return d.Image
}

// pickImage prefers the image flagged primary, then the lowest sort order.
func pickImage(images []productImageDTO) (string, bool) {
	var best *productImageDTO
	for i := range images {
		img := &images[i]
		if img.location() == "" {
			continue
		}
		if img.IsPrimary {
			return img.location(), true
		}
		if best == nil || img.SortOrder < best.SortOrder {
			best = img
		}
	}
	if best == nil {
		return "", false
	}
	return best.location(), true
}

type orderItemDTO struct {
	ID                   flexString      `json:"id"`
	OrderID              flexString      `json:"order_id"`
	ProductID            flexString      `json:"product_id"`
	Quantity             int             `json:"quantity"`
	PriceCentsAtPurchase *int64          `json:"price_cents_at_purchase"`
	PriceAtPurchase      json.RawMessage `json:"price_at_purchase"`
	Product              *productDTO     `json:"product"`
}

type orderDTO struct {
	ID              flexString      `json:"id"`
	Status          string          `json:"status"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerAddress string          `json:"customer_address"`
	PaymentMethod   string          `json:"payment_method"`
	TotalCents      *int64          `json:"total_cents"`
	TotalPrice      json.RawMessage `json:"total_price"`
	Notes           string          `json:"notes"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
	OrderItems      []orderItemDTO  `json:"order_items"`
	Items           []orderItemDTO  `json:"items"`
}

func (d orderDTO) toDomain() (*domain.OrderConfirmation, error) {
	c := &domain.OrderConfirmation{
		ID:              string(d.ID),
		Status:          domain.OrderStatus(d.Status),
		CustomerName:    d.CustomerName,
		CustomerPhone:   d.CustomerPhone,
		CustomerEmail:   d.CustomerEmail,
		CustomerAddress: d.CustomerAddress,
		PaymentMethod:   d.PaymentMethod,
		Notes:           d.Notes,
		CreatedAt:       parseTime(d.CreatedAt),
		UpdatedAt:       parseTime(d.UpdatedAt),
	}

	total, err := centsField(d.TotalCents, d.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s total: %w", c.ID, err)
	}
	c.TotalCents = total

	lines := d.OrderItems
	if len(lines) == 0 {
		lines = d.Items
	}
	c.Items = make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		price, err := centsField(l.PriceCentsAtPurchase, l.PriceAtPurchase)
		if err != nil {
			return nil, fmt.Errorf("order %s item %s: %w", c.ID, l.ProductID, err)
		}
		item := domain.OrderItem{
			ID:         string(l.ID),
			OrderID:    string(l.OrderID),
			ProductID:  string(l.ProductID),
			Quantity:   l.Quantity,
			PriceCents: price,
		}
		if l.Product != nil {
			p, err := l.Product.toDomain()
			if err != nil {
				return nil, err
			}
			item.Product = &p
		}
		c.Items = append(c.Items, item)
	}
	return c, nil
}

func centsField(cents *int64, decimal json.RawMessage) (int64, error) {
	if cents != nil {
		if *cents < 0 {
			return 0, money.ErrNegative
		}
		return *cents, nil
	}
	return money.FromJSON(decimal)
}

// orderRequestDTO is the snake_case body of POST /api/orders.
type orderRequestDTO struct {
	CustomerName    string                    `json:"customer_name"`
	CustomerPhone   string                    `json:"customer_phone"`
	CustomerEmail   string                    `json:"customer_email,omitempty"`
	CustomerAddress string                    `json:"customer_address,omitempty"`
	Notes           string                    `json:"notes,omitempty"`
	PaymentMethod   string                    `json:"payment_method"`
	Items           []domain.OrderRequestItem `json:"items"`
}

func newOrderRequestDTO(r domain.OrderRequest) orderRequestDTO {
	items := r.Items
	if items == nil {
		items = []domain.OrderRequestItem{}
	}
	return orderRequestDTO{
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		CustomerEmail:   r.CustomerEmail,
		CustomerAddress: r.CustomerAddress,
		Notes:           r.Notes,
		PaymentMethod:   r.PaymentMethodOrDefault(),
		Items:           items,
	}
}

type errorDTO struct {
	Detail json.RawMessage `json:"detail"`
}

// detail extracts a message from a {"detail": ...} body. FastAPI validation
// errors carry a list there, which is returned as raw JSON.
func detail(body []byte) string {
	var e errorDTO
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	return string(e.Detail)
}

// flexString decodes a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// parseTime returns the zero time for empty or unrecognized values.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
