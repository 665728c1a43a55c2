package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

const sampleCSV = "NoticeId,Title,PostedDate,PopCountry\nn1,Clinic,2024-01-02,KEN\n"

func TestFetcher_FetchArchive(t *testing.T) {
	t.Run("returns the fiscal year file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "FY2019_archived_opportunities.csv")
		require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

		ext, err := New(dir).FetchArchive(context.Background(), 2019)

		require.NoError(t, err)
		assert.Equal(t, path, ext.Path)
		assert.Equal(t, "FY2019", ext.Segment)
		assert.Equal(t, int64(len(sampleCSV)), ext.Size)
		assert.False(t, ext.Empty)
	})

	t.Run("missing year is not found", func(t *testing.T) {
		_, err := New(t.TempDir()).FetchArchive(context.Background(), 1997)

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, err, domain.ErrFetch)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(t.TempDir()).FetchArchive(ctx, 2019)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFetcher_FetchLatest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, domain.LatestFileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))
	modified := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, modified, modified))

	t.Run("zero watermark reads the file", func(t *testing.T) {
		ext, err := New(dir).FetchLatest(context.Background(), domain.Watermark{})

		require.NoError(t, err)
		assert.Equal(t, path, ext.Path)
		assert.Equal(t, "current", ext.Segment)
	})

	t.Run("file older than watermark is empty", func(t *testing.T) {
		ext, err := New(dir).FetchLatest(context.Background(), domain.Watermark{SyncedAt: modified.Add(time.Hour)})

		require.NoError(t, err)
		assert.True(t, ext.Empty)
		assert.Empty(t, ext.Path)
	})

	t.Run("file newer than watermark is read", func(t *testing.T) {
		ext, err := New(dir).FetchLatest(context.Background(), domain.Watermark{SyncedAt: modified.Add(-time.Hour)})

		require.NoError(t, err)
		assert.False(t, ext.Empty)
	})
}

func TestFileExtract(t *testing.T) {
	t.Run("zero length file is empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		ext, err := FileExtract(path)

		require.NoError(t, err)
		assert.True(t, ext.Empty)
		assert.Equal(t, "empty.csv", ext.Name)
	})

	t.Run("directory is malformed", func(t *testing.T) {
		_, err := FileExtract(t.TempDir())

		assert.ErrorIs(t, err, domain.ErrMalformedExtract)
	})
}

func TestFetcher_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	ext, err := New("").OpenFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, path, ext.Path)
	assert.Equal(t, "file export.csv", ext.Segment)
}

func TestIsExtractFile(t *testing.T) {
	assert.True(t, IsExtractFile("/data/FY2019_archived_opportunities.csv"))
	assert.True(t, IsExtractFile("UPPER.CSV"))
	assert.False(t, IsExtractFile("notes.txt"))
	assert.False(t, IsExtractFile(".hidden.csv"))
	assert.False(t, IsExtractFile("FY2019.csv.part"))
}

func TestFetcher_Watch(t *testing.T) {
	t.Run("reports new csv files once settled", func(t *testing.T) {
		dir := t.TempDir()
		f := New(dir)
		defer f.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		paths, err := f.watch(ctx, 40*time.Millisecond)
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o600)
			_ = os.WriteFile(filepath.Join(dir, "drop.csv"), []byte(sampleCSV), 0o600)
		}()

		select {
		case p := <-paths:
			assert.Equal(t, filepath.Join(dir, "drop.csv"), p)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for watch event")
		}
	})

	t.Run("returns error for missing directory", func(t *testing.T) {
		paths, err := New("/non/existent/path").Watch(context.Background())

		assert.Error(t, err)
		assert.Nil(t, paths)
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		f := New(t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())

		paths, err := f.Watch(ctx)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-paths:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("returns error when fetcher is closed", func(t *testing.T) {
		f := New(t.TempDir())
		require.NoError(t, f.Close())

		paths, err := f.Watch(context.Background())

		assert.ErrorIs(t, err, ErrClosed)
		assert.Nil(t, paths)
	})
}
