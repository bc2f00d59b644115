package dynamostore

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
	"github.com/dpup/wolfcreekpass/server/internal/storage/blob"
	"github.com/dpup/wolfcreekpass/server/internal/storage/storagetest"
)

func newStore(t *testing.T, client *fakeDynamo) *Store {
	t.Helper()
	images, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	s := New(client, Options{Table: "wolfcreek", Images: images, CreateResources: true})
	require.NoError(t, s.Init(storagetest.Context()))
	return s
}

func TestDynamoStore_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Gateway {
		return newStore(t, newFakeDynamo())
	})
}

func TestDynamoStore_ContractPaginated(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Gateway {
		client := newFakeDynamo()
		client.pageSize = 1
		return newStore(t, client)
	})
}

func TestDynamoStore_InitWithoutCreate(t *testing.T) {
	s := New(newFakeDynamo(), Options{Table: "wolfcreek"})
	err := s.Init(storagetest.Context())
	var notFound *types.ResourceNotFoundException
	assert.ErrorAs(t, err, &notFound)
}

func TestDynamoStore_InitIsIdempotent(t *testing.T) {
	client := newFakeDynamo()
	newStore(t, client)
	s := New(client, Options{Table: "wolfcreek", CreateResources: true})
	assert.NoError(t, s.Init(storagetest.Context()))
}

func TestDynamoStore_BatchWriteRetriesUnprocessed(t *testing.T) {
	client := newFakeDynamo()
	s := newStore(t, client)
	ctx := storagetest.Context()
	cycle := storagetest.Cycle(0)
	require.NoError(t, s.SaveCycle(ctx, cycle))

	client.unprocessedOnce = true
	events := make([]model.Event, 30)
	for i := range events {
		events[i] = model.Event{ID: fmt.Sprintf("E-%d", i)}
	}
	require.NoError(t, s.SaveEvents(ctx, cycle.CycleID, events))
	assert.Equal(t, 3, client.batchCalls, "two chunks plus one retry")

	got, err := s.GetEvents(ctx, cycle.CycleID)
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestDynamoStore_RepeatedNaturalIDs(t *testing.T) {
	s := newStore(t, newFakeDynamo())
	ctx := storagetest.Context()
	cycle := storagetest.Cycle(0)
	require.NoError(t, s.SaveCycle(ctx, cycle))

	events := []model.Event{{ID: "E-1", Description: "first"}, {ID: "E-1", Description: "second"}}
	require.NoError(t, s.SaveEvents(ctx, cycle.CycleID, events))

	got, err := s.GetEvents(ctx, cycle.CycleID)
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestDynamoStore_ItemLayout(t *testing.T) {
	client := newFakeDynamo()
	s := newStore(t, client)
	ctx := storagetest.Context()
	cycle := storagetest.Cycle(0)
	require.NoError(t, s.SaveCycle(ctx, cycle))
	require.NoError(t, s.SaveCapture(ctx, storagetest.Capture(cycle, 90779, 0)))

	item := client.items["CAMERA#90779\x00CAPTURE#2026-01-15T07:00:00"]
	require.NotNil(t, item)
	assert.Equal(t, "CYCLE#2026-01-15T07:00:00", str(item, attrGSI1PK))
	assert.Equal(t, "CAPTURE#0000090779", str(item, attrGSI1SK))
	assert.NotContains(t, item, "has_truck", "nil flags are omitted")
}

func TestScopedKeys(t *testing.T) {
	k := scopedKeys(tagPass, "3", "2026-01-15T07:00:00", 12)
	assert.Equal(t, "PASS#3", k.PK)
	assert.Equal(t, "CYCLE#2026-01-15T07:00:00#000012", k.SK)
	assert.Equal(t, "CYCLE#2026-01-15T07:00:00", k.GSI1PK)
	assert.Equal(t, "PASS#000012", k.GSI1SK)
	assert.Equal(t, "PASS", k.Entity)
}
