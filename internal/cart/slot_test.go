package cart

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseSlot checks the contract every Slot implementation shares.
func exerciseSlot(t *testing.T, slot Slot) {
	t.Helper()
	ctx := context.Background()

	_, err := slot.Read(ctx, "missing")
	assert.ErrorIs(t, err, ErrSlotEmpty)

	require.NoError(t, slot.Write(ctx, "k", []byte(`{"version":1}`)))
	require.NoError(t, slot.Write(ctx, "k", []byte(`{"version":1,"lines":[]}`)))
	data, err := slot.Read(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"lines":[]}`, string(data))

	require.NoError(t, slot.Delete(ctx, "k"))
	_, err = slot.Read(ctx, "k")
	assert.ErrorIs(t, err, ErrSlotEmpty)

	require.NoError(t, slot.Delete(ctx, "k"))
}

func TestMemorySlot(t *testing.T) {
	exerciseSlot(t, NewMemorySlot())
}

func TestMemorySlot_CopiesData(t *testing.T) {
	slot := NewMemorySlot()
	ctx := context.Background()
	data := []byte("abc")
	require.NoError(t, slot.Write(ctx, "k", data))
	data[0] = 'x'

	got, err := slot.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileSlot(t *testing.T) {
	slot, err := NewFileSlot(filepath.Join(t.TempDir(), "nested", "carts"))
	require.NoError(t, err)
	exerciseSlot(t, slot)
}

func TestFileSlot_KeysAreSanitized(t *testing.T) {
	dir := t.TempDir()
	slot, err := NewFileSlot(dir)
	require.NoError(t, err)

	require.NoError(t, slot.Write(context.Background(), "../charm_catalog_cart:abc", []byte("[]")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "___charm_catalog_cart_abc.json", entries[0].Name())
}

func TestFileSlot_StoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	slot, err := NewFileSlot(dir)
	require.NoError(t, err)
	s := newTestStore(t, slot)
	s.AddItem(ctx, productA, 3)

	reopened, err := NewFileSlot(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, newTestStore(t, reopened).Quantity(productA.ID))
}

func setupRedisSlot(t *testing.T) (*RedisSlot, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSlot(client, 24*time.Hour), mr
}

func TestRedisSlot(t *testing.T) {
	slot, _ := setupRedisSlot(t)
	exerciseSlot(t, slot)
}

func TestRedisSlot_KeyAndTTL(t *testing.T) {
	slot, mr := setupRedisSlot(t)
	require.NoError(t, slot.Write(context.Background(), "charm_catalog_cart:s1", []byte("[]")))

	assert.True(t, mr.Exists("cart:charm_catalog_cart:s1"))
	ttl := mr.TTL("cart:charm_catalog_cart:s1")
	assert.GreaterOrEqual(t, ttl, 24*time.Hour)
	assert.Less(t, ttl, 25*time.Hour)

	mr.FastForward(26 * time.Hour)
	_, err := slot.Read(context.Background(), "charm_catalog_cart:s1")
	assert.ErrorIs(t, err, ErrSlotEmpty)
}

func TestRedisSlot_Unavailable(t *testing.T) {
	slot, mr := setupRedisSlot(t)
	mr.Close()

	_, err := slot.Read(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotEmpty)
	assert.Error(t, slot.Write(context.Background(), "k", []byte("[]")))
}
