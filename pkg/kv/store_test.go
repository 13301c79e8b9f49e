package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/typedkv/internal/database/testutil"
	"github.com/charlesng35/typedkv/pkg/codec"
	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

func newTestStore(t *testing.T, vt codec.Type) *Store {
	t.Helper()

	store, err := New(Config{
		Database: testutil.MemoryConfig(),
		Table:    testutil.TempTable("kv"),
		Type:     vt,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Database: testutil.MemoryConfig(), Table: "kv-bad-name", Type: codec.TypeJSON})
	require.ErrorIs(t, err, kverrors.ErrInvalidArgument)

	_, err = New(Config{Database: testutil.MemoryConfig(), Table: "", Type: codec.TypeJSON})
	require.ErrorIs(t, err, kverrors.ErrInvalidArgument)

	_, err = New(Config{Database: testutil.MemoryConfig(), Table: "kv_ok", Type: codec.Type("tuple")})
	require.ErrorIs(t, err, kverrors.ErrInvalidArgument)
}

func TestTypeAccessors(t *testing.T) {
	store := newTestStore(t, codec.TypeBoolean)

	require.Equal(t, codec.TypeBoolean, store.ValueType())
	require.Equal(t, TypeInfo{ValueType: codec.TypeBoolean, Affinity: codec.AffinityInteger}, store.TypeInfo())
	require.NotEmpty(t, store.Table())
}

func TestCloseThenReuseReopens(t *testing.T) {
	store, err := New(Config{
		Database: testutil.FileConfig(t),
		Table:    "kv_reopen",
		Type:     codec.TypeJSON,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", map[string]any{"v": "one"}))
	require.NoError(t, store.Close())

	// Closing twice is harmless.
	require.NoError(t, store.Close())

	value, found, err := store.Get(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, map[string]any{"v": "one"}, value)
}

func TestCatalogRecordsValueType(t *testing.T) {
	store := newTestStore(t, codec.TypeJSON)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", map[string]any{"v": float64(1)}))

	db := testutil.MustOpenTestDB(t)
	var row struct {
		ValueType string
		Affinity  string
	}
	require.NoError(t, db.Table("kv_catalog").
		Where("table_name = ?", store.Table()).Take(&row).Error)
	require.Equal(t, "json", row.ValueType)
	require.Equal(t, "text", row.Affinity)
}

func TestReopeningWithDifferentTypeFails(t *testing.T) {
	first := newTestStore(t, codec.TypeJSON)
	ctx := context.Background()

	require.NoError(t, first.Put(ctx, "k", map[string]any{"v": "x"}))

	second, err := New(Config{
		Database: testutil.MemoryConfig(),
		Table:    first.Table(),
		Type:     codec.TypeText,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = second.Close()
	})

	err = second.Put(ctx, "k2", "plain")
	require.ErrorIs(t, err, kverrors.ErrCodecMismatch)
}

func TestNilContextIsTolerated(t *testing.T) {
	store := newTestStore(t, codec.TypeText)

	require.NoError(t, store.Put(nil, "k", "v")) //nolint:staticcheck

	value, found, err := store.Get(nil, "k", 0) //nolint:staticcheck
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", value)
}
