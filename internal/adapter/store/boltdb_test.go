package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semnotes/config"
	"semnotes/internal/adapter/storetest"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

func openTestStore(t *testing.T, path string, dimension int) *BoltNoteStore {
	t.Helper()
	s, err := NewBoltNoteStore(path, dimension)
	require.NoError(t, err)
	return s
}

func TestBoltNoteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, dimension int) port.NoteStore {
		s := openTestStore(t, filepath.Join(t.TempDir(), "notes.db"), dimension)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestBoltNoteStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")
	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	s := openTestStore(t, path, 2)
	_, err := s.Create(ctx, domain.Note{
		ID: "n1", OwnerID: "u1", Content: "persisted",
		Embedding: domain.Ready([]float32{0.6, 0.8}),
		CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	_, err = s.Create(ctx, domain.Note{
		ID: "n2", OwnerID: "u1", Content: "stuck",
		Embedding: domain.Failed("provider down"),
		CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openTestStore(t, path, 0)
	defer s.Close()

	assert.Equal(t, 2, s.Dimension(), "dimension adopted from database")
	assert.Equal(t, 2, s.Count())

	got, err := s.Get(ctx, "u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Content)
	assert.Equal(t, []float32{0.6, 0.8}, got.Embedding.Vector)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Equal(t, int64(1), got.Revision)

	got, err = s.Get(ctx, "u1", "n2")
	require.NoError(t, err)
	assert.Equal(t, domain.Failed("provider down"), got.Embedding)
}

func TestBoltNoteStoreRejectsDimensionChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")

	s := openTestStore(t, path, 3)
	require.NoError(t, s.Close())

	_, err := NewBoltNoteStore(path, 4)
	assert.Error(t, err)

	s = openTestStore(t, path, 3)
	require.NoError(t, s.Close())
}

func TestBoltNoteStoreSchemaVersion(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "notes.db"), 3)
	defer s.Close()

	info, err := s.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)
	assert.Equal(t, 3, info.Dimension)
}

func TestBoltNoteStoreEmbeddingHash(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "notes.db"), 3)
	defer s.Close()

	cfg := config.DefaultConfig()
	result, err := s.CheckEmbedding(cfg.EmbeddingHash())
	require.NoError(t, err)
	assert.False(t, result.NeedsReindex, "fresh store has nothing to reindex")

	require.NoError(t, s.MarkEmbedding(cfg.EmbeddingHash()))

	result, err = s.CheckEmbedding(cfg.EmbeddingHash())
	require.NoError(t, err)
	assert.False(t, result.NeedsReindex)

	changed := config.DefaultConfig()
	changed.Embedding.Model = "another-model"
	result, err = s.CheckEmbedding(changed.EmbeddingHash())
	require.NoError(t, err)
	assert.True(t, result.NeedsReindex)
	assert.NotEmpty(t, result.Reason)
}
