package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8000/uploads")
	require.NoError(t, err)

	ctx := context.Background()
	err = store.Put(ctx, "f1.pdf", "plan.pdf", "application/pdf", 9, strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "f1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	url, err := store.SignedGetURL(ctx, "f1.pdf", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8000/uploads/f1.pdf?expires="), url)
}

func TestLocalStoreGetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8000/uploads")
	require.NoError(t, err)

	_, err = store.SignedGetURL(context.Background(), "nope.bin", time.Hour)
	assert.Error(t, err)
}

func TestLocalStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8000/uploads")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "f1.bin", "f1.bin", "application/octet-stream", 1, strings.NewReader("x")))
	require.NoError(t, store.Delete(ctx, "f1.bin"))
	assert.NoFileExists(t, filepath.Join(dir, "f1.bin"))

	// deleting again is fine
	assert.NoError(t, store.Delete(ctx, "f1.bin"))
}

func TestLocalStoreKeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8000/uploads")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "../../evil.bin", "evil.bin", "application/octet-stream", 1, strings.NewReader("x")))
	assert.FileExists(t, filepath.Join(dir, "evil.bin"))
}
