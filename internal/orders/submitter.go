// Package orders submits checkout requests to the order service and confirms
// them locally when the service cannot be reached.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/google/uuid"
)

const journalTimeout = 5 * time.Second

// OrderCreator is the order service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error)
}

// Catalog prices items of a locally confirmed order.
type Catalog interface {
	FetchProducts(ctx context.Context, query string) ([]domain.Product, error)
}

type Submitter struct {
	remote  OrderCreator
	catalog Catalog
	journal Journal
	log     *slog.Logger
	metrics *metrics.Storefront
	now     func() time.Time
}

type Option func(*Submitter)

func WithJournal(j Journal) Option {
	return func(s *Submitter) { s.journal = j }
}

func WithMetrics(m *metrics.Storefront) Option {
	return func(s *Submitter) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

func NewSubmitter(remote OrderCreator, catalog Catalog, log *slog.Logger, opts ...Option) *Submitter {
	s := &Submitter{
		remote:  remote,
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends req to the order service and returns its confirmation
// unchanged. When the service fails, a local confirmation is returned instead
// with Synthetic set. The request is not validated here.
func (s *Submitter) Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conf, err := s.remote.CreateOrder(ctx, req)
	if err == nil {
		return conf, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, domain.ErrUnconfirmed) {
		s.log.ErrorContext(ctx, "order accepted remotely but confirmation unreadable",
			"items", len(req.Items),
			"error", err,
		)
		return nil, err
	}

	conf = s.synthesize(ctx, req)
	s.metrics.OrderSynthesized()
	s.log.WarnContext(ctx, "order service unavailable, order confirmed locally",
		"local_order_id", conf.ID,
		"items", len(conf.Items),
		"total_cents", conf.TotalCents,
		"error", err,
	)
	s.record(ctx, conf, req)
	return conf, nil
}

func (s *Submitter) synthesize(ctx context.Context, req domain.OrderRequest) *domain.OrderConfirmation {
	now := s.now().UTC()
	id := uuid.NewString()
	prices := s.priceIndex(ctx)

	conf := &domain.OrderConfirmation{
		ID:              id,
		Status:          domain.OrderStatusNew,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		CustomerAddress: req.CustomerAddress,
		PaymentMethod:   req.PaymentMethodOrDefault(),
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]domain.OrderItem, 0, len(req.Items)),
		Synthetic:       true,
	}

	for _, item := range req.Items {
		line := domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   id,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if p, ok := prices[item.ProductID]; ok {
			line.PriceCents = p.PriceCents
			line.Product = &p
		}
		conf.TotalCents += line.PriceCents * int64(item.Quantity)
		conf.Items = append(conf.Items, line)
	}
	return conf
}

// priceIndex returns the known catalog by product ID. Unknown products are
// priced at zero, so a failing catalog only degrades the total.
func (s *Submitter) priceIndex(ctx context.Context) map[string]domain.Product {
	index := make(map[string]domain.Product)
	if s.catalog == nil {
		return index
	}
	products, err := s.catalog.FetchProducts(ctx, "")
	if err != nil {
		s.log.WarnContext(ctx, "catalog unavailable while pricing local order", "error", err)
		return index
	}
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}

func (s *Submitter) record(ctx context.Context, conf *domain.OrderConfirmation, req domain.OrderRequest) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	pending := PendingOrder{LocalID: conf.ID, Request: req, RecordedAt: conf.CreatedAt}
	if err := s.journal.Record(ctx, pending); err != nil {
		s.log.ErrorContext(ctx, "pending order not journaled", "local_order_id", conf.ID, "error", err)
	}
}
