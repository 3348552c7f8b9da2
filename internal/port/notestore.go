package port

import (
	"context"

	"semnotes/internal/domain"
)

// NoteStore persists notes with their embeddings and answers owner-scoped
// nearest-neighbour queries.
type NoteStore interface {
	// Create inserts a new note. The note's Revision is set to 1.
	Create(ctx context.Context, note domain.Note) (domain.Note, error)

	// Get returns the note with id if it belongs to ownerID, or domain.ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (domain.Note, error)

	// Write replaces a note's content and embedding atomically with respect to
	// readers. If expectedRevision is non-zero and differs from the stored
	// revision the write is rejected with domain.ErrConflict. On success the
	// stored revision is incremented and the updated note returned.
	Write(ctx context.Context, note domain.Note, expectedRevision int64) (domain.Note, error)

	// Delete removes the note, or returns domain.ErrNotFound.
	Delete(ctx context.Context, ownerID, id string) error

	// List returns the owner's notes, most recently created first.
	List(ctx context.Context, ownerID string, opts domain.ListOptions) ([]domain.Note, error)

	// SimilaritySearch ranks the owner's ready notes against query.
	SimilaritySearch(ctx context.Context, ownerID string, query []float32, threshold float64, limit int) ([]domain.SimilarityResult, error)

	// Dimension returns the vector dimension the store accepts.
	Dimension() int

	Close() error
}

// EmbeddingTracker is implemented by persistent stores that remember which
// embedding configuration produced their vectors.
type EmbeddingTracker interface {
	CheckEmbedding(hash string) (*domain.EmbeddingCheck, error)
	MarkEmbedding(hash string) error
}
