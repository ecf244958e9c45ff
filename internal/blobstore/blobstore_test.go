package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursvc/conversion-pipeline/internal/digest"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("tours/NYC/asset1/input.ply", []byte("splat-bytes"))

	dir := t.TempDir()
	local, err := store.Get(context.Background(), "tours/NYC/asset1/input.ply", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "splat-bytes", string(data))

	out := filepath.Join(dir, "output.sog")
	require.NoError(t, os.WriteFile(out, []byte("sog-bytes"), 0o600))
	require.NoError(t, store.Put(context.Background(), out, "tours/NYC/asset1/output.sog"))

	roundTrip, err := store.Get(context.Background(), "tours/NYC/asset1/output.sog", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, digest.Bytes([]byte("sog-bytes")), hashFile(t, roundTrip))
}

func TestLocalFSStore_AtomicPut(t *testing.T) {
	store, err := NewLocalFSStore(t.TempDir())
	require.NoError(t, err)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "output.sog")
	require.NoError(t, os.WriteFile(src, []byte{0x53, 0x4F, 0x47, 0x00}, 0o600))

	require.NoError(t, store.Put(context.Background(), src, "tours/NYC/asset1/output.sog"))

	local, err := store.Get(context.Background(), "tours/NYC/asset1/output.sog", t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x53, 0x4F, 0x47, 0x00}, data)
}

func TestLocalFSStore_GetMissing(t *testing.T) {
	store, err := NewLocalFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "tours/NYC/missing/output.sog", t.TempDir())
	require.Error(t, err)
}

func hashFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return digest.Bytes(data)
}
