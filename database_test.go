package sitebot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/sitebot/ai/mock"
	"github.com/poiesic/sitebot/config"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/retry"
	"github.com/poiesic/sitebot/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test_db"), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.Store())
		assert.NotNil(t, db.Registry())
		assert.NotNil(t, db.provider)
		assert.NotNil(t, db.logger)
		assert.Equal(t, config.Default().Chunking, db.Config().Chunking)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestNewDatabase_RetryPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Retry = retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test_db"), WithConfig(cfg), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	writer, ok := db.Store().(*storage.RetryingStore)
	require.True(t, ok, "store writes go through the retrying decorator")
	assert.Equal(t, cfg.Retry, writer.Policy())

	cfg = config.Default()
	cfg.Retry = retry.Policy{}
	_, err = NewDatabase(filepath.Join(t.TempDir(), "other_db"), WithConfig(cfg), WithProvider(mock.NewMockProvider()))
	assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)
}

func TestDatabase_Close(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)

	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db := openTestDatabase(t)

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create responder", func(t *testing.T) {
		responder, err := db.NewResponder()
		require.NoError(t, err)
		require.NotNil(t, responder)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		assert.NotNil(t, db.NewReembedder(io.Discard))
	})
}

func TestDatabase_IngestAndAsk(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodHead {
			return
		}
		io.WriteString(w, `<html><body>
<h1>Opening hours</h1>
<p>The library is open from nine until five on weekdays.</p>
</body></html>`)
	}))
	defer site.Close()

	db := openTestDatabase(t)

	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	id, err := pipeline.StartIngestion(site.URL+"/", "library")
	require.NoError(t, err)
	pipeline.Wait()

	task, err := pipeline.GetProgress(id)
	require.NoError(t, err)
	require.Equal(t, core.PhaseCompleted, task.Phase, "task error: %s", task.Error)
	assert.Equal(t, 1, task.PagesScraped)

	count, err := db.Store().Count(context.Background(), "library")
	require.NoError(t, err)
	assert.Equal(t, task.ChunksCreated, count)

	responder, err := db.NewResponder()
	require.NoError(t, err)
	answer, err := responder.Ask(context.Background(), "library", "When is the library open?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	assert.Equal(t, []string{site.URL + "/"}, answer.Sources)
}

func TestDatabase_ConfiguredMaxPages(t *testing.T) {
	cfg := config.Default()
	cfg.Crawl.MaxPages = 1
	cfg.Tasks.SweepInterval = 10 * time.Millisecond

	db, err := NewDatabase(t.TempDir(), WithConfig(cfg), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Config().Crawl.MaxPages)
}
