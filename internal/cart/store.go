// Package cart owns the shopping cart: line merging, derived totals and
// persistence to a durable slot after every change.
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/metrics"
)

// StorageKey is the slot key of a single-user cart.
const StorageKey = "charm_catalog_cart"

const envelopeVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported cart version")

type envelope struct {
	Version int               `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Lines   []domain.CartLine `json:"lines"`
}

// Encode serializes lines in the current envelope format.
func Encode(lines []domain.CartLine, savedAt time.Time) ([]byte, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return json.Marshal(envelope{Version: envelopeVersion, SavedAt: savedAt.UTC(), Lines: lines})
}

// Decode accepts the versioned envelope and the legacy bare array of lines.
// Invalid lines are dropped and duplicates merged.
func Decode(data []byte) ([]domain.CartLine, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var lines []domain.CartLine
	if data[0] == '[' {
		if err := json.Unmarshal(data, &lines); err != nil {
			return nil, fmt.Errorf("decode legacy cart: %w", err)
		}
		return domain.Normalize(lines), nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	return domain.Normalize(env.Lines), nil
}

// Store is safe for concurrent use. Every mutation is one read-modify-write
// under the store's lock, followed by a write of the whole cart to the slot.
// Slot failures are logged and counted; the in-memory cart stays authoritative.
type Store struct {
	slot    Slot
	key     string
	log     *slog.Logger
	metrics *metrics.Storefront
	now     func() time.Time

	mu    sync.Mutex
	lines []domain.CartLine
	open  bool
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithMetrics(m *metrics.Storefront) Option {
	return func(s *Store) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore builds a store and loads whatever the slot holds.
func NewStore(ctx context.Context, slot Slot, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		slot: slot,
		key:  StorageKey,
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		s.log.WarnContext(ctx, "cart slot unreadable, starting empty", "key", s.key, "error", err)
	}
	return s
}

// Reload replaces the in-memory cart with the slot contents. A corrupt payload
// resets the cart; only a failing slot returns an error.
func (s *Store) Reload(ctx context.Context) error {
	data, err := s.slot.Read(ctx, s.key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, ErrSlotEmpty) {
		s.lines = nil
		return nil
	}
	if err != nil {
		return err
	}

	lines, err := Decode(data)
	if err != nil {
		s.log.WarnContext(ctx, "discarding corrupt cart", "key", s.key, "error", err)
		s.lines = nil
		return nil
	}
	s.lines = lines
	return nil
}

// AddItem adds quantity units of product, merging into an existing line.
// The resulting quantity stays within 1..domain.MaxQuantity.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int) {
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		if i := indexOf(lines, product.ID); i >= 0 {
			lines[i].Quantity = clampQuantity(lines[i].Quantity + quantity)
			return lines
		}
		return append(lines, domain.CartLine{Product: product, Quantity: clampQuantity(quantity)})
	})
}

func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return slices.DeleteFunc(lines, func(l domain.CartLine) bool { return l.Product.ID == productID })
	})
}

// UpdateQuantity sets the quantity of a line; below one removes it and above
// domain.MaxQuantity is capped. Unknown product IDs are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		if i := indexOf(lines, productID); i >= 0 {
			lines[i].Quantity = min(quantity, domain.MaxQuantity)
		}
		return lines
	})
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	if err := s.slot.Delete(ctx, s.key); err != nil {
		s.persistFailed(ctx, err)
	}
}

// Deduct subtracts ordered quantities from the cart, leaving whatever was
// added after the order was taken. An emptied cart is deleted from the slot.
func (s *Store) Deduct(ctx context.Context, items []domain.OrderRequestItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := slices.Clone(s.lines)
	for _, item := range items {
		if i := indexOf(lines, item.ProductID); i >= 0 {
			lines[i].Quantity -= item.Quantity
		}
	}
	s.lines = domain.Normalize(lines)
	if len(s.lines) > 0 {
		s.persist(ctx)
		return
	}
	s.lines = nil
	if err := s.slot.Delete(ctx, s.key); err != nil {
		s.persistFailed(ctx, err)
	}
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

func (s *Store) Cart() domain.Cart {
	return domain.Cart{Lines: s.Lines()}
}

func (s *Store) ItemCount() int {
	return s.Cart().ItemCount()
}

func (s *Store) TotalCents() int64 {
	return s.Cart().TotalCents()
}

// Quantity returns the quantity of productID, zero when absent.
func (s *Store) Quantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.lines, productID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

func (s *Store) Open() {
	s.SetOpen(true)
}

// SetOpen toggles the cart panel. It is view state and never persisted.
func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) mutate(ctx context.Context, fn func([]domain.CartLine) []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = domain.Normalize(fn(slices.Clone(s.lines)))
	s.persist(ctx)
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context) {
	data, err := Encode(s.lines, s.now())
	if err != nil {
		s.persistFailed(ctx, err)
		return
	}
	if err := s.slot.Write(ctx, s.key, data); err != nil {
		s.persistFailed(ctx, err)
	}
}

func (s *Store) persistFailed(ctx context.Context, err error) {
	s.metrics.CartPersistFailed()
	s.log.WarnContext(ctx, "cart not persisted", "key", s.key, "error", err)
}

func clampQuantity(q int) int {
	return min(max(q, 1), domain.MaxQuantity)
}

func indexOf(lines []domain.CartLine, productID string) int {
	return slices.IndexFunc(lines, func(l domain.CartLine) bool { return l.Product.ID == productID })
}
