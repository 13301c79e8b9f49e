package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/typedkv/internal/app"
	"github.com/charlesng35/typedkv/internal/database/testutil"
	"github.com/charlesng35/typedkv/pkg/codec"
	kverrors "github.com/charlesng35/typedkv/pkg/errors"
	"github.com/charlesng35/typedkv/pkg/kv"
)

func newCLIStore(t *testing.T, vt codec.Type) *kv.Store {
	t.Helper()

	store, err := kv.New(kv.Config{
		Database: testutil.MemoryConfig(),
		Table:    testutil.TempTable("kvctl"),
		Type:     vt,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestDispatchPutGetDelete(t *testing.T) {
	store := newCLIStore(t, codec.TypeJSON)
	cfg := &app.Config{}
	ctx := context.Background()

	require.NoError(t, dispatch(ctx, store, cfg, "put", []string{"user:1", `{"name":"alpha"}`}))

	value, found, err := store.Get(ctx, "user:1", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, map[string]any{"name": "alpha"}, value)

	require.NoError(t, dispatch(ctx, store, cfg, "get", []string{"user:1"}))
	require.ErrorIs(t, dispatch(ctx, store, cfg, "get", []string{"user:2"}), kverrors.ErrNotFound)

	require.NoError(t, dispatch(ctx, store, cfg, "delete", []string{"user:1"}))
	require.ErrorIs(t, dispatch(ctx, store, cfg, "get", []string{"user:1"}), kverrors.ErrNotFound)
}

func TestDispatchHasSignalsAbsence(t *testing.T) {
	store := newCLIStore(t, codec.TypeText)
	cfg := &app.Config{}
	ctx := context.Background()

	require.ErrorIs(t, dispatch(ctx, store, cfg, "has", []string{"k"}), kverrors.ErrNotFound)

	require.NoError(t, store.Put(ctx, "k", "v"))
	require.NoError(t, dispatch(ctx, store, cfg, "has", []string{"k"}))
}

func TestDispatchClearNeedsConfirmation(t *testing.T) {
	store := newCLIStore(t, codec.TypeText)
	cfg := &app.Config{}
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "v"))

	require.Error(t, dispatch(ctx, store, cfg, "clear", nil))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.NoError(t, dispatch(ctx, store, cfg, "clear", []string{"-yes"}))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDispatchImport(t *testing.T) {
	store := newCLIStore(t, codec.TypeJSON)
	cfg := &app.Config{}
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1, "b": {"x": true}}`), 0o600))

	require.NoError(t, dispatch(ctx, store, cfg, "import", []string{path}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	value, found, err := store.Get(ctx, "b", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, map[string]any{"x": true}, value)
}

func TestDispatchManyDelete(t *testing.T) {
	store := newCLIStore(t, codec.TypeText)
	cfg := &app.Config{}
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, key, "v"))
	}

	require.NoError(t, dispatch(ctx, store, cfg, "many-delete", []string{"a", "b"}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestDispatchRejectsUnknownCommand(t *testing.T) {
	store := newCLIStore(t, codec.TypeText)

	err := dispatch(context.Background(), store, &app.Config{}, "explode", nil)
	require.ErrorContains(t, err, "unknown command")
}

func TestParseValue(t *testing.T) {
	parsed := parseValue(codec.TypeJSON, `{"n": 1}`)
	require.Equal(t, map[string]any{"n": float64(1)}, parsed)

	// Bare words are kept as strings even for JSON stores.
	require.Equal(t, "alpha", parseValue(codec.TypeJSON, "alpha"))

	// Scalar stores rely on codec coercion of string literals.
	require.Equal(t, "42", parseValue(codec.TypeInteger, "42"))
}

func TestRenderValue(t *testing.T) {
	require.Equal(t, `{"n":1}`, renderValue(map[string]any{"n": float64(1)}))
	require.Equal(t, "alpha", renderValue("alpha"))
	require.Equal(t, "raw", renderValue([]byte("raw")))
	require.Equal(t, "42", renderValue(int64(42)))
}
