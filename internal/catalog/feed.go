package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
)

// ErrStale is returned by Feed.Load when a newer load superseded it.
var ErrStale = errors.New("stale catalog load")

type Fetcher interface {
	FetchProducts(ctx context.Context, query string) ([]domain.Product, error)
}

// FeedState is the last applied load.
type FeedState struct {
	Generation uint64
	Query      string
	Products   []domain.Product
	Err        error
}

// Feed serializes catalog loads for a single view. Starting a load cancels
// the previous one, and only the newest generation may update the state.
type Feed struct {
	fetcher Fetcher

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  FeedState
}

func NewFeed(f Fetcher) *Feed {
	return &Feed{fetcher: f}
}

func (f *Feed) Load(ctx context.Context, query string) ([]domain.Product, error) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	products, err := f.fetcher.FetchProducts(ctx, query)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return nil, ErrStale
	}
	// A cancelled load never applies, even if the fetcher ignored ctx.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	f.state = FeedState{Generation: gen, Query: query, Products: products, Err: err}
	return products, err
}

// Cancel aborts the in-flight load, if any.
func (f *Feed) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
}

func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
