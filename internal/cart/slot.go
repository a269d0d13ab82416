package cart

import (
	"context"
	"errors"
)

// ErrSlotEmpty is returned by Slot.Read when nothing is stored under the key.
var ErrSlotEmpty = errors.New("cart slot empty")

// Slot is durable key-value storage for a serialized cart.
type Slot interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
