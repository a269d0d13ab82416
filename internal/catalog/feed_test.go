package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetcherFunc func(ctx context.Context, query string) ([]domain.Product, error)

func (f fetcherFunc) FetchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	return f(ctx, query)
}

func TestFeed_LoadAppliesResult(t *testing.T) {
	feed := NewFeed(fetcherFunc(func(_ context.Context, q string) ([]domain.Product, error) {
		return Filter(sampleProducts(), q), nil
	}))

	products, err := feed.Load(context.Background(), "opti")
	require.NoError(t, err)
	assert.Len(t, products, 1)

	state := feed.State()
	assert.Equal(t, uint64(1), state.Generation)
	assert.Equal(t, "opti", state.Query)
	assert.Equal(t, products, state.Products)
	assert.NoError(t, state.Err)
}

func TestFeed_StaleLoadIsDiscarded(t *testing.T) {
	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})

	feed := NewFeed(fetcherFunc(func(ctx context.Context, q string) ([]domain.Product, error) {
		if q == "slow" {
			close(slowStarted)
			<-slowRelease
			// ignores cancellation and returns a result anyway
			return sampleProducts(), nil
		}
		return Filter(sampleProducts(), q), nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := feed.Load(context.Background(), "slow")
		done <- err
	}()
	<-slowStarted

	products, err := feed.Load(context.Background(), "arthro")
	require.NoError(t, err)
	assert.Len(t, products, 1)

	close(slowRelease)
	assert.ErrorIs(t, <-done, ErrStale)

	state := feed.State()
	assert.Equal(t, "arthro", state.Query)
	assert.Len(t, state.Products, 1)
}

func TestFeed_NewLoadCancelsPrevious(t *testing.T) {
	started := make(chan struct{}, 1)
	feed := NewFeed(fetcherFunc(func(ctx context.Context, q string) ([]domain.Product, error) {
		if q == "first" {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return sampleProducts(), nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := feed.Load(context.Background(), "first")
		done <- err
	}()
	<-started

	_, err := feed.Load(context.Background(), "second")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(time.Second):
		t.Fatal("first load was not cancelled")
	}
	assert.Equal(t, "second", feed.State().Query)
}

func TestFeed_CancelDoesNotApplyError(t *testing.T) {
	started := make(chan struct{})
	feed := NewFeed(fetcherFunc(func(ctx context.Context, q string) ([]domain.Product, error) {
		if q == "" {
			return sampleProducts(), nil
		}
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	_, err := feed.Load(context.Background(), "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := feed.Load(context.Background(), "pending")
		done <- err
	}()
	<-started
	feed.Cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	state := feed.State()
	assert.Equal(t, uint64(1), state.Generation)
	assert.Len(t, state.Products, 3)
}

func TestFeed_CancelledLoadDoesNotApplyResult(t *testing.T) {
	var feed *Feed
	feed = NewFeed(fetcherFunc(func(_ context.Context, q string) ([]domain.Product, error) {
		if q == "" {
			return sampleProducts()[:1], nil
		}
		feed.Cancel()
		return sampleProducts(), nil
	}))

	_, err := feed.Load(context.Background(), "")
	require.NoError(t, err)

	products, err := feed.Load(context.Background(), "late")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, products)

	state := feed.State()
	assert.Equal(t, uint64(1), state.Generation)
	assert.Equal(t, "", state.Query)
	assert.Len(t, state.Products, 1)
}

func TestFeed_ErrorIsRecorded(t *testing.T) {
	feed := NewFeed(fetcherFunc(func(context.Context, string) ([]domain.Product, error) {
		return nil, ErrNoCatalog
	}))

	_, err := feed.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCatalog)
	assert.ErrorIs(t, feed.State().Err, ErrNoCatalog)
}
