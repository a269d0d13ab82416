package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const PaymentCashOnDelivery = "cash_on_delivery"

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusContacted OrderStatus = "contacted"
	OrderStatusScheduled OrderStatus = "scheduled"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCanceled  OrderStatus = "canceled"
)

func (s OrderStatus) String() string {
	return string(s)
}

type OrderRequestItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

// OrderRequest is a checkout submission built from a cart or a quick order.
type OrderRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required,max=100"`
	CustomerPhone   string             `json:"customer_phone" validate:"required,min=8,max=20"`
	CustomerEmail   string             `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerAddress string             `json:"customer_address,omitempty" validate:"max=500"`
	Notes           string             `json:"notes,omitempty" validate:"max=1000"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	Items           []OrderRequestItem `json:"items" validate:"required,min=1,dive"`
}

// Customer holds the contact fields shared by cart checkout and quick orders.
type Customer struct {
	Name    string `json:"customer_name"`
	Phone   string `json:"customer_phone"`
	Email   string `json:"customer_email,omitempty"`
	Address string `json:"customer_address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// CartOrderRequest builds a request for every line of the cart.
func CartOrderRequest(c Customer, lines []CartLine) OrderRequest {
	req := newRequest(c)
	req.Items = make([]OrderRequestItem, 0, len(lines))
	for _, line := range lines {
		req.Items = append(req.Items, OrderRequestItem{ProductID: line.Product.ID, Quantity: line.Quantity})
	}
	return req
}

// QuickOrderRequest builds a single-product request that bypasses the cart.
func QuickOrderRequest(c Customer, productID string, quantity int) OrderRequest {
	req := newRequest(c)
	req.Items = []OrderRequestItem{{ProductID: productID, Quantity: quantity}}
	return req
}

func newRequest(c Customer) OrderRequest {
	return OrderRequest{
		CustomerName:    strings.TrimSpace(c.Name),
		CustomerPhone:   strings.TrimSpace(c.Phone),
		CustomerEmail:   strings.TrimSpace(c.Email),
		CustomerAddress: strings.TrimSpace(c.Address),
		Notes:           strings.TrimSpace(c.Notes),
	}
}

// PaymentMethodOrDefault returns the payment method, falling back to cash on delivery.
func (r OrderRequest) PaymentMethodOrDefault() string {
	if r.PaymentMethod == "" {
		return PaymentCashOnDelivery
	}
	return r.PaymentMethod
}

// ErrUnconfirmed means the order service accepted an order but its reply
// could not be read. The order exists remotely and must not be placed again.
var ErrUnconfirmed = errors.New("order accepted but confirmation unreadable")

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("invalid order request")

// ValidationError maps field names to human-readable problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid order request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MaxQuantity is the largest quantity of one product per order; it matches
// the max tag on OrderRequestItem.Quantity.
const MaxQuantity = 99

var validate = newValidator()

// newValidator reports fields by their JSON names, so errors read
// "customer_name" or "items[0].quantity" instead of Go field paths.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs the checks the checkout forms apply before submitting.
func (r OrderRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(fe)
		if _, ok := fields[key]; ok {
			continue
		}
		fields[key] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldKey maps "OrderRequest.items[0].quantity" to "items[0]" and
// "OrderRequest.customer_name" to "customer_name".
func fieldKey(fe validator.FieldError) string {
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	key, _, _ := strings.Cut(path, ".")
	return key
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() + ":" + fe.Tag() {
	case "customer_name:required":
		return "name is required"
	case "customer_name:max":
		return "name too long"
	case "customer_phone:required":
		return "phone is required"
	case "customer_phone:min":
		return "valid phone required"
	case "customer_phone:max":
		return "phone too long"
	case "customer_email:email":
		return "valid email required"
	case "customer_address:max":
		return "address too long"
	case "notes:max":
		return "notes too long"
	case "items:required", "items:min":
		return "at least one item is required"
	case "product_id:required":
		return "product_id is required"
	case "quantity:min":
		return "quantity must be at least 1"
	case "quantity:max":
		return "quantity too high"
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

type OrderItem struct {
	ID         string   `json:"id,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	ProductID  string   `json:"product_id"`
	Quantity   int      `json:"quantity"`
	PriceCents int64    `json:"price_cents"`
	Product    *Product `json:"product,omitempty"`
}

// OrderConfirmation is returned by the order service or synthesized locally
// when the service is unreachable (Synthetic is then true).
type OrderConfirmation struct {
	ID              string      `json:"id"`
	Status          OrderStatus `json:"status"`
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	CustomerAddress string      `json:"customer_address,omitempty"`
	PaymentMethod   string      `json:"payment_method"`
	TotalCents      int64       `json:"total_cents"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []OrderItem `json:"items"`
	Synthetic       bool        `json:"synthetic"`
}
