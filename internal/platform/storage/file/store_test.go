package file

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectra-bot-backend/internal/platform/storage"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	doc := json.RawMessage(`{"prize":"Nitro","winners_count":2}`)
	require.NoError(t, store.Put(ctx, "giveaways", "g1", doc))

	got, err := store.Get(ctx, "giveaways", "g1")
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(got))
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "giveaways", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "licenses", "k1", json.RawMessage(`{"key":"k1"}`)))
	require.NoError(t, store.Delete(ctx, "licenses", "k1"))

	_, err = store.Get(ctx, "licenses", "k1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "licenses", "k1"), storage.ErrNotFound)
}

func TestListCollection(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "levels", "u1", json.RawMessage(`{"xp":100}`)))
	require.NoError(t, store.Put(ctx, "levels", "u2", json.RawMessage(`{"xp":200}`)))

	records, err := store.List(ctx, "levels")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	empty, err := store.List(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "premium", "guild1", json.RawMessage(`{"active":true}`)))

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "premium", "guild1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"active":true}`, string(got))
}

func TestCollectionsAreIndependent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "giveaways", "id", json.RawMessage(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, "licenses", "id", json.RawMessage(`{"b":2}`)))

	got, err := store.Get(ctx, "giveaways", "id")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))
}
