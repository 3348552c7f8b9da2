package domain

import (
	"fmt"
	"time"
)

// EmbeddingState tags whether a note's vector can be used for similarity search.
type EmbeddingState string

const (
	// EmbeddingReady means the vector was computed from the current content.
	EmbeddingReady EmbeddingState = "ready"
	// EmbeddingPending means the content changed and a new vector is being generated.
	EmbeddingPending EmbeddingState = "pending"
	// EmbeddingFailed means regeneration failed and the note needs reindexing.
	EmbeddingFailed EmbeddingState = "failed"
)

// Valid reports whether s is one of the known states.
func (s EmbeddingState) Valid() bool {
	switch s {
	case EmbeddingReady, EmbeddingPending, EmbeddingFailed:
		return true
	}
	return false
}

// Embedding is the tagged vector status of a note. Vector is only set when
// State is EmbeddingReady; Reason is only set when State is EmbeddingFailed.
type Embedding struct {
	State  EmbeddingState
	Vector []float32
	Reason string
}

// Ready returns a ready embedding holding vec.
func Ready(vec []float32) Embedding {
	return Embedding{State: EmbeddingReady, Vector: vec}
}

// Pending returns the embedding of a note whose vector is being regenerated.
func Pending() Embedding {
	return Embedding{State: EmbeddingPending}
}

// Failed returns the embedding of a note whose regeneration failed.
func Failed(reason string) Embedding {
	return Embedding{State: EmbeddingFailed, Reason: reason}
}

// Searchable reports whether the embedding may take part in similarity search.
func (e Embedding) Searchable() bool {
	return e.State == EmbeddingReady && len(e.Vector) > 0
}

// Validate checks that e is well formed for a store holding vectors of the
// given dimension. A dimension of 0 accepts any length.
func (e Embedding) Validate(dimension int) error {
	if !e.State.Valid() {
		return fmt.Errorf("unknown embedding state %q", e.State)
	}
	if e.State != EmbeddingReady {
		if len(e.Vector) > 0 {
			return fmt.Errorf("%s embedding must not carry a vector", e.State)
		}
		return nil
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("ready embedding has no vector")
	}
	if dimension > 0 && len(e.Vector) != dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", dimension, len(e.Vector))
	}
	return nil
}

// Note is a user's text note together with the embedding of its content.
type Note struct {
	ID        string
	OwnerID   string
	Content   string
	Embedding Embedding
	CreatedAt time.Time
	UpdatedAt time.Time
	Revision  int64
}

// SimilarityResult is a note matched by a search with its score in [0,1].
type SimilarityResult struct {
	Note  Note
	Score float64
}

// EventKind names what happened to a note.
type EventKind string

const (
	EventInserted  EventKind = "inserted"
	EventReindexed EventKind = "reindexed"
	EventDeleted   EventKind = "deleted"
)

// NoteEvent is published to subscribers of an owner when one of their notes changes.
// Payloads are hints only; subscribers re-query for authoritative state.
type NoteEvent struct {
	OwnerID string    `json:"owner_id"`
	NoteID  string    `json:"note_id"`
	Kind    EventKind `json:"kind"`
	At      time.Time `json:"at"`
}

// ListOptions filters note listings.
type ListOptions struct {
	State EmbeddingState // empty means all states
	Limit int            // <= 0 means no limit
}

// EmbeddingCheck reports whether stored vectors came from a different
// embedding configuration than the current one.
type EmbeddingCheck struct {
	NeedsReindex bool
	Reason       string
}

// CompareEmbeddingHash compares the hash recorded by a store with the current
// one. An empty stored hash means nothing was recorded yet.
func CompareEmbeddingHash(stored, current string) *EmbeddingCheck {
	if stored != "" && stored != current {
		return &EmbeddingCheck{NeedsReindex: true, Reason: "embedding configuration changed"}
	}
	return &EmbeddingCheck{}
}
