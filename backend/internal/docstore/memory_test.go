package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSnapshot struct {
	Text string    `bson:"text"`
	At   time.Time `bson:"at"`
}

type testDoc struct {
	ID       string        `bson:"_id"`
	Key      string        `bson:"key"`
	Members  []string      `bson:"members"`
	Rank     int           `bson:"rank"`
	Snapshot *testSnapshot `bson:"snapshot,omitempty"`
}

func TestMemoryStore_InsertAndFindOne(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "1", Key: "a:b", Members: []string{"a", "b"}}))

	var got testDoc
	require.NoError(t, store.FindOne(ctx, "docs", Filter{"key": "a:b"}, &got))
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, []string{"a", "b"}, got.Members)

	err := store.FindOne(ctx, "docs", Filter{"key": "missing"}, &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ArrayFieldMatchesContainedValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "1", Members: []string{"a", "b"}}))
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "2", Members: []string{"b", "c"}}))
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "3", Members: []string{"c", "d"}}))

	var got []testDoc
	require.NoError(t, store.Find(ctx, "docs", Filter{"members": "b"}, FindOptions{}, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestMemoryStore_FindSortsAndLimits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "1", Rank: 2}))
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "2", Rank: 1, Snapshot: &testSnapshot{At: base.Add(time.Minute)}}))
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "3", Rank: 1, Snapshot: &testSnapshot{At: base}}))

	var byRank []testDoc
	require.NoError(t, store.Find(ctx, "docs", Filter{}, FindOptions{
		Sort: []SortField{{Field: "rank"}, {Field: "_id", Desc: true}},
	}, &byRank))
	assert.Equal(t, []string{"3", "2", "1"}, ids(byRank))

	var byNested []testDoc
	require.NoError(t, store.Find(ctx, "docs", nil, FindOptions{
		Sort:  []SortField{{Field: "snapshot.at", Desc: true}},
		Limit: 2,
	}, &byNested))
	assert.Equal(t, []string{"2", "3"}, ids(byNested))
}

func TestMemoryStore_UniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureUniqueIndex(ctx, "docs", "key"))

	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "1", Key: "a:b"}))
	assert.ErrorIs(t, store.Insert(ctx, "docs", testDoc{ID: "2", Key: "a:b"}), ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, "docs", testDoc{ID: "1", Key: "c:d"}), ErrDuplicateKey)
	assert.Equal(t, 1, store.Count("docs"))
}

func TestMemoryStore_UpdateByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "1", Key: "k"}))

	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.UpdateByID(ctx, "docs", "1", Patch{
		"snapshot": testSnapshot{Text: "hi", At: at},
	}))

	var got testDoc
	require.NoError(t, store.FindOne(ctx, "docs", Filter{"_id": "1"}, &got))
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, "hi", got.Snapshot.Text)
	assert.True(t, at.Equal(got.Snapshot.At))
	assert.Equal(t, "k", got.Key)

	assert.ErrorIs(t, store.UpdateByID(ctx, "docs", "nope", Patch{"key": "x"}), ErrNotFound)
}

func TestMemoryStore_DeleteMatching(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "1", Key: "a"}))
	require.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "2", Key: "b"}))

	n, err := store.DeleteMatching(ctx, "docs", Filter{"key": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.DeleteMatching(ctx, "docs", Filter{"key": "a"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, store.Count("docs"))
}

func TestMemoryStore_FailNext(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	store.FailNext(OpInsert, "docs", boom)
	assert.ErrorIs(t, store.Insert(ctx, "docs", testDoc{ID: "1"}), boom)
	assert.Zero(t, store.Count("docs"))

	// fault is consumed
	assert.NoError(t, store.Insert(ctx, "docs", testDoc{ID: "1"}))
}

func TestMemoryStore_FindRejectsNonSliceTarget(t *testing.T) {
	store := NewMemoryStore()
	var single testDoc
	assert.Error(t, store.Find(context.Background(), "docs", Filter{}, FindOptions{}, &single))
}

func ids(docs []testDoc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
