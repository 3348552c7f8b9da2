package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"semnotes/internal/adapter/memstore"
	"semnotes/internal/adapter/retriever"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

var (
	bucketNotes = []byte("notes")
	bucketMeta  = []byte("meta")
)

// BoltNoteStore implements port.NoteStore using BoltDB for persistence.
// Notes are mirrored in memory and searched brute force.
type BoltNoteStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	// In-memory cache for fast search, keyed by note ID
	notes map[string]domain.Note
}

var (
	_ port.NoteStore        = (*BoltNoteStore)(nil)
	_ port.EmbeddingTracker = (*BoltNoteStore)(nil)
)

type storedNote struct {
	OwnerID   string                `json:"owner_id"`
	Content   string                `json:"content"`
	State     domain.EmbeddingState `json:"state"`
	Vector    []float32             `json:"v,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	CreatedAt int64                 `json:"created_at"`
	UpdatedAt int64                 `json:"updated_at"`
	Revision  int64                 `json:"rev"`
}

// NewBoltNoteStore opens (or creates) the database at path. A dimension of 0
// adopts the dimension recorded in the database.
func NewBoltNoteStore(path string, dimension int) (*BoltNoteStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketNotes, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltNoteStore{
		db:    db,
		notes: make(map[string]domain.Note),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if s.dimension, err = s.bindDimension(dimension); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadNotes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}

	return s, nil
}

// loadNotes loads all notes from BoltDB into memory.
func (s *BoltNoteStore) loadNotes() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNotes).ForEach(func(k, v []byte) error {
			note, err := decodeNote(string(k), v)
			if err != nil {
				return fmt.Errorf("note %s: %w", k, err)
			}
			s.notes[note.ID] = note
			return nil
		})
	})
}

func encodeNote(note domain.Note) ([]byte, error) {
	return json.Marshal(storedNote{
		OwnerID:   note.OwnerID,
		Content:   note.Content,
		State:     note.Embedding.State,
		Vector:    note.Embedding.Vector,
		Reason:    note.Embedding.Reason,
		CreatedAt: note.CreatedAt.UnixNano(),
		UpdatedAt: note.UpdatedAt.UnixNano(),
		Revision:  note.Revision,
	})
}

func decodeNote(id string, data []byte) (domain.Note, error) {
	var stored storedNote
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Note{}, err
	}
	return domain.Note{
		ID:      id,
		OwnerID: stored.OwnerID,
		Content: stored.Content,
		Embedding: domain.Embedding{
			State:  stored.State,
			Vector: stored.Vector,
			Reason: stored.Reason,
		},
		CreatedAt: time.Unix(0, stored.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, stored.UpdatedAt).UTC(),
		Revision:  stored.Revision,
	}, nil
}

// put persists note and then mirrors it in memory. Callers hold s.mu.
func (s *BoltNoteStore) put(note domain.Note) error {
	data, err := encodeNote(note)
	if err != nil {
		return fmt.Errorf("failed to encode note: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNotes).Put([]byte(note.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write note %s: %w", note.ID, err)
	}
	s.notes[note.ID] = cloneNote(note)
	return nil
}

func (s *BoltNoteStore) Create(ctx context.Context, note domain.Note) (domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return domain.Note{}, err
	}
	if err := note.Embedding.Validate(s.dimension); err != nil {
		return domain.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[note.ID]; exists {
		return domain.Note{}, fmt.Errorf("note already exists: %s", note.ID)
	}
	note.Revision = 1
	if err := s.put(note); err != nil {
		return domain.Note{}, err
	}
	return cloneNote(note), nil
}

func (s *BoltNoteStore) Get(ctx context.Context, ownerID, id string) (domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return domain.Note{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return domain.Note{}, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	return cloneNote(note), nil
}

func (s *BoltNoteStore) Write(ctx context.Context, note domain.Note, expectedRevision int64) (domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return domain.Note{}, err
	}
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
	if err := s.put(stored); err != nil {
		return domain.Note{}, err
	}
	return cloneNote(stored), nil
}

func (s *BoltNoteStore) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNotes).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	delete(s.notes, id)
	return nil
}

func (s *BoltNoteStore) List(ctx context.Context, ownerID string, opts domain.ListOptions) ([]domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

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

	memstore.SortNewestFirst(notes)
	if opts.Limit > 0 && len(notes) > opts.Limit {
		notes = notes[:opts.Limit]
	}
	return notes, nil
}

// SimilaritySearch ranks the owner's ready notes against query.
func (s *BoltNoteStore) SimilaritySearch(ctx context.Context, ownerID string, query []float32, threshold float64, limit int) ([]domain.SimilarityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.dimension > 0 && len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]domain.Note, 0)
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

// Count returns the number of notes across all owners.
func (s *BoltNoteStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

func (s *BoltNoteStore) Dimension() int {
	return s.dimension
}

func (s *BoltNoteStore) Close() error {
	return s.db.Close()
}

func cloneNote(note domain.Note) domain.Note {
	if note.Embedding.Vector != nil {
		vec := make([]float32, len(note.Embedding.Vector))
		copy(vec, note.Embedding.Vector)
		note.Embedding.Vector = vec
	}
	return note
}
