package kv

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/typedkv/pkg/codec"
	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

func TestPutGetRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		vt   codec.Type
		in   any
		want any
	}{
		{"json object", codec.TypeJSON, map[string]any{"name": "alpha", "count": 2}, map[string]any{"name": "alpha", "count": float64(2)}},
		{"json array", codec.TypeJSON, []any{"a", float64(1)}, []any{"a", float64(1)}},
		{"text", codec.TypeText, "hello", "hello"},
		{"binary", codec.TypeBinary, []byte{0x00, 0x01, 0xff}, []byte{0x00, 0x01, 0xff}},
		{"integer", codec.TypeInteger, 42, int64(42)},
		{"real", codec.TypeReal, 2.5, 2.5},
		{"boolean", codec.TypeBoolean, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t, tc.vt)
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, "k", tc.in))

			value, found, err := store.Get(ctx, "k", 0)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, tc.want, value)
		})
	}
}

func TestGetAbsentKey(t *testing.T) {
	store := newTestStore(t, codec.TypeJSON)

	value, found, err := store.Get(context.Background(), "missing", 0)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, value)
}

func TestOversizedIntegersSurviveAsStrings(t *testing.T) {
	store := newTestStore(t, codec.TypeJSON)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", map[string]any{"id": int64(1) << 60}))

	value, found, err := store.Get(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, map[string]any{"id": "1152921504606846976"}, value)
}

func TestGetExpiresStaleEntries(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "v"))

	value, found, err := store.Get(ctx, "k", time.Hour)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", value)

	time.Sleep(20 * time.Millisecond)

	_, found, err = store.Get(ctx, "k", 5*time.Millisecond)
	require.NoError(t, err)
	require.False(t, found)

	// The expired row is gone, not merely hidden.
	exists, err := store.Has(ctx, "k")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "v"))
	time.Sleep(10 * time.Millisecond)

	_, found, err := store.Get(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, found)
}

func TestOverwritePreservesCreatedAt(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "first"))
	before, found, err := store.GetEntry(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, found)

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, store.Put(ctx, "k", "second"))
	after, found, err := store.GetEntry(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, found)

	require.Equal(t, "second", after.Value)
	require.True(t, after.CreatedAt.Equal(before.CreatedAt))
	require.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestEntryTimestampsAreUTC(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "v"))

	entry, found, err := store.GetEntry(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, time.UTC, entry.CreatedAt.Location())
	require.Equal(t, time.UTC, entry.UpdatedAt.Location())
	require.False(t, entry.CreatedAt.IsZero())
}

func TestAddRejectsExistingKey(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "k", "first"))

	err := store.Add(ctx, "k", "second")
	require.ErrorIs(t, err, kverrors.ErrKeyExists)

	value, _, err := store.Get(ctx, "k", 0)
	require.NoError(t, err)
	require.Equal(t, "first", value)
}

func TestDeleteReportsRemoval(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	removed, err := store.Delete(ctx, "missing")
	require.NoError(t, err)
	require.False(t, removed)

	require.NoError(t, store.Put(ctx, "k", "v"))

	removed, err = store.Delete(ctx, "k")
	require.NoError(t, err)
	require.True(t, removed)

	_, found, err := store.Get(ctx, "k", 0)
	require.NoError(t, err)
	require.False(t, found)
}

func TestHasIgnoresTTL(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "v"))
	time.Sleep(10 * time.Millisecond)

	exists, err := store.Has(ctx, "k")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestClearAndCount(t *testing.T) {
	store := newTestStore(t, codec.TypeInteger)
	ctx := context.Background()

	for i, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, key, i))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	require.NoError(t, store.Clear(ctx))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestKeyValidation(t *testing.T) {
	store := newTestStore(t, codec.TypeText)
	ctx := context.Background()

	require.ErrorIs(t, store.Put(ctx, "", "v"), kverrors.ErrInvalidArgument)

	long := strings.Repeat("k", MaxKeyLength+1)
	require.ErrorIs(t, store.Put(ctx, long, "v"), kverrors.ErrInvalidArgument)

	_, _, err := store.Get(ctx, "", 0)
	require.ErrorIs(t, err, kverrors.ErrInvalidArgument)

	// A key at the limit is accepted.
	require.NoError(t, store.Put(ctx, strings.Repeat("k", MaxKeyLength), "v"))
}

func TestUnsupportedValueSurfacesBeforeWrite(t *testing.T) {
	store := newTestStore(t, codec.TypeBinary)
	ctx := context.Background()

	err := store.Put(ctx, "k", 12.5)
	require.ErrorIs(t, err, kverrors.ErrUnsupportedValue)

	exists, err := store.Has(ctx, "k")
	require.NoError(t, err)
	require.False(t, exists)
}
