package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/api"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const replayerGroupID = "storefront-replayer"

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Replayer resubmits journaled orders to the order service. An offset is
// committed only once the order service has answered for the order.
type Replayer struct {
	reader     messageReader
	remote     OrderCreator
	log        *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewReplayer(remote OrderCreator, log *slog.Logger, brokers ...string) *Replayer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    PendingOrdersTopic,
		GroupID:  replayerGroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newReplayer(reader, remote, log)
}

func newReplayer(reader messageReader, remote OrderCreator, log *slog.Logger) *Replayer {
	return &Replayer{
		reader:     reader,
		remote:     remote,
		log:        log,
		minBackoff: time.Second,
		maxBackoff: time.Minute,
	}
}

// Run blocks until ctx is cancelled.
func (r *Replayer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		r.processMessage(ctx)
	}
}

func (r *Replayer) Close() error {
	return r.reader.Close()
}

func (r *Replayer) processMessage(ctx context.Context) {
	m, err := r.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.ErrorContext(ctx, "error reading pending order", "error", err)
		r.sleep(ctx, r.minBackoff)
		return
	}

	var pending PendingOrder
	if err := json.Unmarshal(m.Value, &pending); err != nil {
		r.log.ErrorContext(ctx, "skipping malformed pending order", "offset", m.Offset, "error", err)
		r.commit(ctx, m)
		return
	}

	if !r.resubmit(ctx, pending) {
		return
	}
	r.commit(ctx, m)
}

// resubmit retries with exponential backoff until the order service answers.
// It returns false only when ctx is cancelled.
func (r *Replayer) resubmit(ctx context.Context, pending PendingOrder) bool {
	backoff := r.minBackoff
	for {
		conf, err := r.remote.CreateOrder(ctx, pending.Request)
		if err == nil {
			r.log.InfoContext(ctx, "pending order replayed", "local_order_id", pending.LocalID, "order_id", conf.ID)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if errors.Is(err, domain.ErrUnconfirmed) {
			r.log.WarnContext(ctx, "pending order accepted but confirmation unreadable",
				"local_order_id", pending.LocalID, "error", err)
			return true
		}
		if rejected(err) {
			r.log.ErrorContext(ctx, "order service rejected pending order, dropping it",
				"local_order_id", pending.LocalID, "error", err)
			return true
		}

		r.log.WarnContext(ctx, "order service still unavailable", "local_order_id", pending.LocalID, "retry_in", backoff, "error", err)
		if !r.sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, r.maxBackoff)
	}
}

// rejected reports a definitive client error; retrying would never succeed.
func rejected(err error) bool {
	var se *api.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 &&
		se.StatusCode != http.StatusRequestTimeout && se.StatusCode != http.StatusTooManyRequests
}

func (r *Replayer) commit(ctx context.Context, m kafka.Message) {
	if err := r.reader.CommitMessages(ctx, m); err != nil {
		r.log.ErrorContext(ctx, "failed to commit pending order offset", "offset", m.Offset, "error", err)
	}
}

func (r *Replayer) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
