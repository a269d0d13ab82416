package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/api"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var offsets []int64
	for _, m := range r.committed {
		offsets = append(offsets, m.Offset)
	}
	return offsets
}

func pendingMessage(t *testing.T, offset int64, localID string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(PendingOrder{
		LocalID: localID,
		Request: domain.QuickOrderRequest(customer, productA.ID, 1),
	})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(localID), Value: payload}
}

func fastReplayer(reader messageReader, remote OrderCreator) *Replayer {
	r := newReplayer(reader, remote, logger.Discard())
	r.minBackoff = time.Millisecond
	r.maxBackoff = 4 * time.Millisecond
	return r
}

func runUntil(t *testing.T, r *Replayer, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()
	assert.Eventually(t, done, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-stopped
}

func TestReplayer_CommitsAfterSuccess(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{pendingMessage(t, 1, "a"), pendingMessage(t, 2, "b")}}
	var mu sync.Mutex
	var seen []string
	remote := creatorFunc(func(_ context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, req.Items[0].ProductID)
		return &domain.OrderConfirmation{ID: "remote"}, nil
	})

	r := fastReplayer(reader, remote)
	runUntil(t, r, func() bool { return len(reader.committedOffsets()) == 2 })

	assert.Equal(t, []int64{1, 2}, reader.committedOffsets())
	assert.Len(t, seen, 2)
}

func TestReplayer_RetriesUntilAccepted(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{pendingMessage(t, 7, "a")}}
	var mu sync.Mutex
	attempts := 0
	remote := creatorFunc(func(context.Context, domain.OrderRequest) (*domain.OrderConfirmation, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 4 {
			return nil, &api.StatusError{StatusCode: 503, Detail: "Service Unavailable"}
		}
		return &domain.OrderConfirmation{ID: "remote"}, nil
	})

	r := fastReplayer(reader, remote)
	runUntil(t, r, func() bool { return len(reader.committedOffsets()) == 1 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, attempts)
}

func TestReplayer_NoCommitWhileUnavailable(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{pendingMessage(t, 3, "a")}}
	calls := make(chan struct{}, 100)
	remote := creatorFunc(func(context.Context, domain.OrderRequest) (*domain.OrderConfirmation, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil, errors.New("connection refused")
	})

	r := fastReplayer(reader, remote)
	runUntil(t, r, func() bool { return len(calls) >= 3 })

	assert.Empty(t, reader.committedOffsets())
}

func TestReplayer_RejectedAndMalformedAreSkipped(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 10, Value: []byte("{broken")},
		pendingMessage(t, 11, "rejected"),
	}}
	remote := creatorFunc(func(context.Context, domain.OrderRequest) (*domain.OrderConfirmation, error) {
		return nil, &api.StatusError{StatusCode: 422, Detail: "unknown product"}
	})

	r := fastReplayer(reader, remote)
	runUntil(t, r, func() bool { return len(reader.committedOffsets()) == 2 })

	assert.Equal(t, []int64{10, 11}, reader.committedOffsets())
}

func TestReplayer_UnconfirmedIsNotResent(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{pendingMessage(t, 5, "a")}}
	var mu sync.Mutex
	attempts := 0
	remote := creatorFunc(func(context.Context, domain.OrderRequest) (*domain.OrderConfirmation, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return nil, domain.ErrUnconfirmed
	})

	r := fastReplayer(reader, remote)
	runUntil(t, r, func() bool { return len(reader.committedOffsets()) == 1 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestRejected(t *testing.T) {
	assert.True(t, rejected(&api.StatusError{StatusCode: 400}))
	assert.True(t, rejected(&api.StatusError{StatusCode: 404}))
	assert.False(t, rejected(&api.StatusError{StatusCode: 429}))
	assert.False(t, rejected(&api.StatusError{StatusCode: 408}))
	assert.False(t, rejected(&api.StatusError{StatusCode: 500}))
	assert.False(t, rejected(errors.New("timeout")))
}
