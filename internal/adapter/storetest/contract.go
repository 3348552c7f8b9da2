// Package storetest holds behaviour tests shared by every port.NoteStore
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// Dimension is the vector dimension stores under test must be opened with.
const Dimension = 3

// Factory opens an empty store with the given dimension.
type Factory func(t *testing.T, dimension int) port.NoteStore

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newNote(id, owner, content string, offset time.Duration, vec ...float32) domain.Note {
	return domain.Note{
		ID:        id,
		OwnerID:   owner,
		Content:   content,
		Embedding: domain.Ready(vec),
		CreatedAt: base.Add(offset),
		UpdatedAt: base.Add(offset),
	}
}

// Run exercises the NoteStore contract against stores built by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, factory(t, Dimension)) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, factory(t, Dimension)) })
	t.Run("DimensionMismatch", func(t *testing.T) { testDimensionMismatch(t, factory(t, Dimension)) })
	t.Run("WriteRevisions", func(t *testing.T) { testWriteRevisions(t, factory(t, Dimension)) })
	t.Run("PendingIsNotSearchable", func(t *testing.T) { testPendingIsNotSearchable(t, factory(t, Dimension)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory(t, Dimension)) })
	t.Run("List", func(t *testing.T) { testList(t, factory(t, Dimension)) })
	t.Run("SimilaritySearch", func(t *testing.T) { testSimilaritySearch(t, factory(t, Dimension)) })
	t.Run("ConcurrentWrites", func(t *testing.T) { testConcurrentWrites(t, factory(t, Dimension)) })
}

func testCreateAndGet(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	created, err := s.Create(ctx, newNote("n1", "u1", "hello", 0, 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Revision)

	got, err := s.Get(ctx, "u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, domain.EmbeddingReady, got.Embedding.State)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding.Vector)
	assert.True(t, got.CreatedAt.Equal(base), "created_at preserved, got %v", got.CreatedAt)
	assert.Equal(t, int64(1), got.Revision)
	assert.Equal(t, Dimension, s.Dimension())

	_, err = s.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testOwnerScoping(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("n1", "A", "secret", 0, 1, 0, 0))
	require.NoError(t, err)

	_, err = s.Get(ctx, "B", "n1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	other := newNote("n1", "B", "hijack", 0, 0, 1, 0)
	_, err = s.Write(ctx, other, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "B", "n1"), domain.ErrNotFound)

	results, err := s.SimilaritySearch(ctx, "B", []float32{1, 0, 0}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	listed, err := s.List(ctx, "B", domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func testDimensionMismatch(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("n1", "u1", "short", 0, 1, 0))
	assert.Error(t, err)

	_, err = s.Get(ctx, "u1", "n1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "rejected note must not be persisted")
}

func testWriteRevisions(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("n1", "u1", "v1", 0, 1, 0, 0))
	require.NoError(t, err)

	update := newNote("n1", "u1", "v2", time.Hour, 0, 1, 0)
	written, err := s.Write(ctx, update, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), written.Revision)
	assert.Equal(t, "v2", written.Content)
	assert.True(t, written.CreatedAt.Equal(base), "created_at is immutable")

	_, err = s.Write(ctx, newNote("n1", "u1", "stale", time.Hour, 0, 0, 1), 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.Get(ctx, "u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content, "conflicting write leaves state unchanged")
	assert.Equal(t, []float32{0, 1, 0}, got.Embedding.Vector)

	written, err = s.Write(ctx, newNote("n1", "u1", "v3", time.Hour, 0, 0, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), written.Revision, "zero expected revision writes unconditionally")

	_, err = s.Write(ctx, newNote("ghost", "u1", "x", 0, 1, 0, 0), 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testPendingIsNotSearchable(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("n1", "u1", "v1", 0, 1, 0, 0))
	require.NoError(t, err)

	pending := domain.Note{ID: "n1", OwnerID: "u1", Content: "v2", Embedding: domain.Pending(), UpdatedAt: base}
	_, err = s.Write(ctx, pending, 1)
	require.NoError(t, err)

	results, err := s.SimilaritySearch(ctx, "u1", []float32{1, 0, 0}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	failed := domain.Note{ID: "n1", OwnerID: "u1", Content: "v2", Embedding: domain.Failed("timeout"), UpdatedAt: base}
	_, err = s.Write(ctx, failed, 2)
	require.NoError(t, err)

	got, err := s.Get(ctx, "u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, got.Embedding.State)
	assert.Equal(t, "timeout", got.Embedding.Reason)
	assert.Empty(t, got.Embedding.Vector)

	results, err = s.SimilaritySearch(ctx, "u1", []float32{1, 0, 0}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.Write(ctx, newNote("n1", "u1", "v2", 0, 1, 0, 0), 3)
	require.NoError(t, err)

	results, err = s.SimilaritySearch(ctx, "u1", []float32{1, 0, 0}, 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v2", results[0].Note.Content)
}

func testDelete(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("n1", "u1", "bye", 0, 1, 0, 0))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "u1", "n1"))
	_, err = s.Get(ctx, "u1", "n1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u1", "n1"), domain.ErrNotFound)
}

func testList(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("old", "u1", "old", 0, 1, 0, 0))
	require.NoError(t, err)
	_, err = s.Create(ctx, newNote("mid", "u1", "mid", time.Minute, 1, 0, 0))
	require.NoError(t, err)
	_, err = s.Create(ctx, newNote("new", "u1", "new", time.Hour, 1, 0, 0))
	require.NoError(t, err)
	_, err = s.Create(ctx, newNote("else", "u2", "else", time.Hour, 1, 0, 0))
	require.NoError(t, err)

	pending := domain.Note{ID: "mid", OwnerID: "u1", Content: "mid2", Embedding: domain.Pending()}
	_, err = s.Write(ctx, pending, 1)
	require.NoError(t, err)

	all, err := s.List(ctx, "u1", domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(all))

	pendingOnly, err := s.List(ctx, "u1", domain.ListOptions{State: domain.EmbeddingPending})
	require.NoError(t, err)
	assert.Equal(t, []string{"mid"}, ids(pendingOnly))

	limited, err := s.List(ctx, "u1", domain.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid"}, ids(limited))
}

func testSimilaritySearch(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("exact", "u1", "exact", 0, 1, 0, 0))
	require.NoError(t, err)
	_, err = s.Create(ctx, newNote("near", "u1", "near", time.Minute, 0.8, 0.6, 0))
	require.NoError(t, err)
	_, err = s.Create(ctx, newNote("far", "u1", "far", time.Hour, 0, 0, 1))
	require.NoError(t, err)
	_, err = s.Create(ctx, newNote("twin", "u1", "twin", time.Hour, 1, 0, 0))
	require.NoError(t, err)

	results, err := s.SimilaritySearch(ctx, "u1", []float32{1, 0, 0}, 0.5, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"twin", "exact", "near"}, resultIDs(results), "ties broken by newest first")
	assert.InDelta(t, 0.8, results[2].Score, 1e-5)

	results, err = s.SimilaritySearch(ctx, "u1", []float32{1, 0, 0}, 0.5, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"twin"}, resultIDs(results))

	results, err = s.SimilaritySearch(ctx, "u1", []float32{1, 0, 0}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.SimilaritySearch(ctx, "u1", []float32{1, 0}, 0, 10)
	assert.Error(t, err, "query dimension must match the store")
}

func testConcurrentWrites(t *testing.T, s port.NoteStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, newNote("n1", "u1", "v0", 0, 1, 0, 0))
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			note := newNote("n1", "u1", fmt.Sprintf("v%d", i+1), 0, 1, 0, 0)
			_, err := s.Write(ctx, note, 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, int64(1+writers), got.Revision, "writes to one note serialise")
}

func ids(notes []domain.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func resultIDs(results []domain.SimilarityResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Note.ID
	}
	return out
}
