// Package catalog resolves the product catalog from the product service,
// falling back to a cached snapshot and then the bundled local catalog.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/api"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// ErrNoCatalog means no source could provide any product at all.
var ErrNoCatalog = errors.New("no catalog available")

// Remote is the product service.
type Remote interface {
	ListProducts(ctx context.Context, search string) ([]domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
}

// Source is a fallback holding the full, unfiltered catalog.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// SnapshotCache is a Source that is refreshed from good remote results.
type SnapshotCache interface {
	Source
	Set(ctx context.Context, products []domain.Product) error
}

const (
	sourceCache = "cache"
	sourceLocal = "local"
	sourceEmpty = "empty"

	defaultRemoteTimeout = 10 * time.Second
	cacheWriteTimeout    = 2 * time.Second
)

type fallback struct {
	name string
	src  Source
}

type Provider struct {
	remote        Remote
	cache         SnapshotCache
	local         Source
	mockData      bool
	remoteTimeout time.Duration
	log           *slog.Logger
	metrics       *metrics.Storefront
	sfg           singleflight.Group
}

type Option func(*Provider)

// WithCache enables the snapshot cache, both as the first fallback and as the
// target of refreshes after successful unfiltered remote calls.
func WithCache(c SnapshotCache) Option {
	return func(p *Provider) { p.cache = c }
}

// WithLocal sets the bundled catalog.
func WithLocal(s Source) Option {
	return func(p *Provider) { p.local = s }
}

// WithMockData skips the remote service entirely.
func WithMockData(on bool) Option {
	return func(p *Provider) { p.mockData = on }
}

func WithRemoteTimeout(d time.Duration) Option {
	return func(p *Provider) { p.remoteTimeout = d }
}

func WithMetrics(m *metrics.Storefront) Option {
	return func(p *Provider) { p.metrics = m }
}

func NewProvider(remote Remote, log *slog.Logger, opts ...Option) *Provider {
	p := &Provider{
		remote:        remote,
		remoteTimeout: defaultRemoteTimeout,
		log:           log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchProducts returns the catalog filtered by query. An empty list is a
// valid result; ErrNoCatalog is returned only when every source is empty or
// unavailable. A cancelled ctx returns ctx.Err() without consulting fallbacks.
func (p *Provider) FetchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)

	remoteOK := false
	if p.useRemote() {
		products, err := p.listRemote(ctx, query)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case err != nil:
			p.log.WarnContext(ctx, "product service unavailable, using fallback catalog", "query", query, "error", err)
		case len(products) > 0:
			return products, nil
		default:
			remoteOK = true
		}
	}

	products, source, err := p.fallbackCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if source == sourceEmpty {
		if remoteOK {
			return []domain.Product{}, nil
		}
		return nil, ErrNoCatalog
	}
	return SortProducts(Filter(products, query), SortNewest), nil
}

// FetchProductBySlug returns nil, nil when the product does not exist. A 404
// from the product service is final; other failures search the fallbacks.
func (p *Provider) FetchProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}

	if p.useRemote() {
		rctx, cancel := context.WithTimeout(ctx, p.remoteTimeout)
		product, err := p.remote.GetProductBySlug(rctx, slug)
		cancel()
		switch {
		case err == nil:
			return product, nil
		case errors.Is(err, api.ErrNotFound):
			return nil, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		p.log.WarnContext(ctx, "product service unavailable, searching fallback catalog", "slug", slug, "error", err)
	}

	products, _, err := p.fallbackCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if i := slices.IndexFunc(products, func(pr domain.Product) bool { return pr.Slug == slug }); i >= 0 {
		return &products[i], nil
	}
	return nil, nil
}

// ProductByID resolves a product from the full catalog; nil, nil when unknown.
func (p *Provider) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	products, err := p.FetchProducts(ctx, "")
	if err != nil {
		return nil, err
	}
	if i := slices.IndexFunc(products, func(pr domain.Product) bool { return pr.ID == id }); i >= 0 {
		return &products[i], nil
	}
	return nil, nil
}

func (p *Provider) useRemote() bool {
	return !p.mockData && p.remote != nil
}

// listRemote de-duplicates identical concurrent calls. The shared call runs
// detached from any single caller so one cancellation does not fail the rest.
func (p *Provider) listRemote(ctx context.Context, query string) ([]domain.Product, error) {
	ch := p.sfg.DoChan("list:"+query, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.remoteTimeout)
		defer cancel()

		products, err := p.remote.ListProducts(rctx, query)
		if err != nil {
			return nil, err
		}
		if query == "" && len(products) > 0 {
			p.refreshCache(context.WithoutCancel(ctx), products)
		}
		return products, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.Product)), nil
	}
}

func (p *Provider) refreshCache(ctx context.Context, products []domain.Product) {
	if p.cache == nil {
		return
	}
	snapshot := slices.Clone(products)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, cacheWriteTimeout)
		defer cancel()
		if err := p.cache.Set(ctx, snapshot); err != nil {
			p.log.WarnContext(ctx, "catalog cache refresh failed", "error", err)
		}
	}()
}

// fallbackCatalog returns the first non-empty fallback in order: cache, then
// the local catalog. source is sourceEmpty when none has products.
func (p *Provider) fallbackCatalog(ctx context.Context) ([]domain.Product, string, error) {
	var chain []fallback
	if p.cache != nil {
		chain = append(chain, fallback{name: sourceCache, src: p.cache})
	}
	if p.local != nil {
		chain = append(chain, fallback{name: sourceLocal, src: p.local})
	}

	for _, fb := range chain {
		products, err := fb.src.ListProducts(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				p.log.WarnContext(ctx, "fallback catalog unavailable", "source", fb.name, "error", err)
			}
			continue
		}
		if len(products) == 0 {
			continue
		}
		level := slog.LevelWarn
		if p.mockData {
			level = slog.LevelDebug
		}
		p.metrics.CatalogFallback(fb.name)
		p.log.Log(ctx, level, "serving fallback catalog", "source", fb.name, "products", len(products))
		return products, fb.name, nil
	}

	p.metrics.CatalogFallback(sourceEmpty)
	return nil, sourceEmpty, nil
}
