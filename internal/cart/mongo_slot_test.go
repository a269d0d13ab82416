package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func setupMongoSlot(t *testing.T) *MongoSlot {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	t.Cleanup(func() { db.Client().Disconnect(ctx) })

	slot := NewMongoSlot(db)
	require.NoError(t, slot.CreateIndexes(ctx))
	return slot
}

func TestMongoSlot(t *testing.T) {
	slot := setupMongoSlot(t)
	exerciseSlot(t, slot)
}

func TestMongoSlot_StoreRoundTrip(t *testing.T) {
	slot := setupMongoSlot(t)
	ctx := context.Background()

	s := newTestStore(t, slot, WithKey(StorageKey+":session-1"))
	s.AddItem(ctx, productA, 2)
	s.AddItem(ctx, productB, 1)

	reloaded := newTestStore(t, slot, WithKey(StorageKey+":session-1"))
	assert.Equal(t, s.Lines(), reloaded.Lines())

	other := newTestStore(t, slot, WithKey(StorageKey+":session-2"))
	assert.Empty(t, other.Lines())

	var doc bson.M
	require.NoError(t, slot.collection.FindOne(ctx, bson.M{"_id": StorageKey + ":session-1"}).Decode(&doc))
	assert.Contains(t, doc, "updated_at")
	assert.Contains(t, doc["payload"], `"version":1`)
}
