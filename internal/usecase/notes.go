package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// NotesUseCase lists, fetches and deletes an owner's notes.
type NotesUseCase struct {
	store     port.NoteStore
	publisher port.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotesUseCase creates a new notes use case. A nil publisher disables
// change notifications.
func NewNotesUseCase(store port.NoteStore, publisher port.Publisher, logger *slog.Logger) *NotesUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotesUseCase{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the owner's notes newest first. An empty state lists all
// notes; "failed" lists the notes that need reindexing.
func (u *NotesUseCase) List(ctx context.Context, ownerID string, state domain.EmbeddingState, limit int) ([]domain.Note, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if state != "" && !state.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, state)
	}

	notes, err := u.store.List(ctx, ownerID, domain.ListOptions{State: state, Limit: limit})
	if err != nil {
		return nil, storeError("list notes", err)
	}
	return notes, nil
}

// Get returns one of the owner's notes.
func (u *NotesUseCase) Get(ctx context.Context, ownerID, noteID string) (domain.Note, error) {
	if err := validateOwner(ownerID); err != nil {
		return domain.Note{}, err
	}
	note, err := u.store.Get(ctx, ownerID, noteID)
	if err != nil {
		return domain.Note{}, storeError("load note", err)
	}
	return note, nil
}

// Delete removes one of the owner's notes.
func (u *NotesUseCase) Delete(ctx context.Context, ownerID, noteID string) error {
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	if err := u.store.Delete(ctx, ownerID, noteID); err != nil {
		return storeError("delete note", err)
	}

	u.publisher.Publish(ctx, domain.NoteEvent{
		OwnerID: ownerID,
		NoteID:  noteID,
		Kind:    domain.EventDeleted,
		At:      u.now().UTC(),
	})
	u.logger.Info("note deleted", "owner_id", ownerID, "note_id", noteID)
	return nil
}
