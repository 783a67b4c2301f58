package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-cart/internal/storage/snapshot"
)

func TestKV_GetMissing(t *testing.T) {
	kv, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = kv.Get(context.Background(), "cart")
	require.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestKV_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kv, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, "cart", []byte(`{"items":[]}`)))
	require.NoError(t, kv.Set(ctx, "cart", []byte(`{"items":[1]}`)))

	got, err := kv.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[1]}`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "cart.json", entries[0].Name())
}

func TestKV_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	kv, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Ping(context.Background()))
}

func TestKV_RejectsPathKeys(t *testing.T) {
	kv, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, kv.Set(context.Background(), key, []byte("x")), key)
	}
}

func TestKV_WithStore(t *testing.T) {
	ctx := context.Background()
	kv, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "cart", []byte("garbage")))

	st := snapshot.NewStore(kv, "cart").Load(ctx)
	assert.True(t, st.Empty())
}
