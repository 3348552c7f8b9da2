package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"semnotes/internal/adapter/retriever"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// MemoryStore keeps notes in process memory. It is used by tests and by the
// "memory" store backend.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	notes     map[string]domain.Note
}

var _ port.NoteStore = (*MemoryStore)(nil)

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		notes:     make(map[string]domain.Note),
	}
}

func (s *MemoryStore) Create(_ context.Context, note domain.Note) (domain.Note, error) {
	if err := note.Embedding.Validate(s.dimension); err != nil {
		return domain.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[note.ID]; exists {
		return domain.Note{}, fmt.Errorf("note already exists: %s", note.ID)
	}
	note.Revision = 1
	s.notes[note.ID] = cloneNote(note)
	return cloneNote(note), nil
}

func (s *MemoryStore) Get(_ context.Context, ownerID, id string) (domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return domain.Note{}, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	return cloneNote(note), nil
}

func (s *MemoryStore) Write(_ context.Context, note domain.Note, expectedRevision int64) (domain.Note, error) {
	if err := note.Embedding.Validate(s.dimension); err != nil {
		return domain.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.notes[note.ID]
	if !ok || stored.OwnerID != note.OwnerID {
		return domain.Note{}, fmt.Errorf("note %s: %w", note.ID, domain.ErrNotFound)
	}
	if expectedRevision != 0 && stored.Revision != expectedRevision {
		return domain.Note{}, fmt.Errorf("note %s at revision %d, expected %d: %w", note.ID, stored.Revision, expectedRevision, domain.ErrConflict)
	}

	stored.Content = note.Content
	stored.Embedding = note.Embedding
	stored.UpdatedAt = note.UpdatedAt
	stored.Revision++
	s.notes[note.ID] = cloneNote(stored)
	return cloneNote(stored), nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, ownerID string, opts domain.ListOptions) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]domain.Note, 0)
	for _, note := range s.notes {
		if note.OwnerID != ownerID {
			continue
		}
		if opts.State != "" && note.Embedding.State != opts.State {
			continue
		}
		notes = append(notes, cloneNote(note))
	}

	SortNewestFirst(notes)
	if opts.Limit > 0 && len(notes) > opts.Limit {
		notes = notes[:opts.Limit]
	}
	return notes, nil
}

func (s *MemoryStore) SimilaritySearch(_ context.Context, ownerID string, query []float32, threshold float64, limit int) ([]domain.SimilarityResult, error) {
	if s.dimension > 0 && len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]domain.Note, 0, len(s.notes))
	for _, note := range s.notes {
		if note.OwnerID == ownerID {
			candidates = append(candidates, note)
		}
	}

	results := retriever.Rank(ownerID, candidates, query, threshold, limit)
	for i := range results {
		results[i].Note = cloneNote(results[i].Note)
	}
	return results, nil
}

func (s *MemoryStore) Dimension() int {
	return s.dimension
}

func (s *MemoryStore) Close() error {
	return nil
}

// SortNewestFirst orders notes by CreatedAt descending, then ID ascending.
func SortNewestFirst(notes []domain.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}

func cloneNote(note domain.Note) domain.Note {
	if note.Embedding.Vector != nil {
		vec := make([]float32, len(note.Embedding.Vector))
		copy(vec, note.Embedding.Vector)
		note.Embedding.Vector = vec
	}
	return note
}
