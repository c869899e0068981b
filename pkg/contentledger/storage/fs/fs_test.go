package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-ledger/pkg/contentledger"
	fsstorage "github.com/tendant/content-ledger/pkg/contentledger/storage/fs"
)

func TestFSBackend(t *testing.T) {
	baseDir := t.TempDir()
	backend, err := fsstorage.New(fsstorage.Config{BaseDir: baseDir})
	require.NoError(t, err)

	ctx := context.Background()
	testKey := "snapshots/20250101T000000Z-a.json"
	testData := `{"version":1}`

	t.Run("Upload", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, testKey, strings.NewReader(testData)))

		_, err := os.Stat(filepath.Join(baseDir, "snapshots", "20250101T000000Z-a.json"))
		assert.NoError(t, err)
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("DownloadMissing", func(t *testing.T) {
		_, err := backend.Download(ctx, "snapshots/missing.json")
		assert.ErrorIs(t, err, contentledger.ErrBlobNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "snapshots/20240101T000000Z-b.json", strings.NewReader("x")))
		require.NoError(t, backend.Upload(ctx, "other/key", strings.NewReader("y")))

		keys, err := backend.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.Equal(t, []string{"snapshots/20240101T000000Z-b.json", testKey}, keys)
	})

	t.Run("RejectsEscapingKey", func(t *testing.T) {
		err := backend.Upload(ctx, "../outside.json", strings.NewReader("x"))
		assert.ErrorIs(t, err, contentledger.ErrInvalidArgument)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.Download(ctx, testKey)
		assert.ErrorIs(t, err, contentledger.ErrBlobNotFound)
		assert.NoError(t, backend.Delete(ctx, testKey))
	})
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := fsstorage.New(fsstorage.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory is required")
}
