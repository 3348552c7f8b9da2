package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"semnotes/config"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// ReindexUseCase regenerates embeddings after a note's content changes.
type ReindexUseCase struct {
	store        port.NoteStore
	embedder     port.Embedder
	publisher    port.Publisher
	embedTimeout time.Duration
	maxChars     int
	logger       *slog.Logger
	now          func() time.Time
}

// NewReindexUseCase creates a new reindex use case. A nil publisher disables
// change notifications.
func NewReindexUseCase(
	store port.NoteStore,
	embedder port.Embedder,
	publisher port.Publisher,
	cfg *config.Config,
	logger *slog.Logger,
) *ReindexUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReindexUseCase{
		store:        store,
		embedder:     embedder,
		publisher:    publisher,
		embedTimeout: cfg.Embedding.Timeout,
		maxChars:     cfg.Capture.MaxContentChars,
		logger:       logger,
		now:          time.Now,
	}
}

// Reembed replaces a note's content and regenerates its embedding.
//
// The new content is first stored as pending so the note can never be found
// through its old vector. The embedding call then runs without holding any
// store lock. On success the note becomes ready again; on failure it is left
// failed with the reason and ErrUpstream is returned. If another writer
// changed the note in between, ErrConflict is returned and that writer's
// state is kept.
//
// expectedRevision 0 accepts whatever revision is current.
func (u *ReindexUseCase) Reembed(ctx context.Context, ownerID, noteID, content string, expectedRevision int64) (domain.Note, error) {
	if err := validateOwner(ownerID); err != nil {
		return domain.Note{}, err
	}
	if strings.TrimSpace(noteID) == "" {
		return domain.Note{}, fmt.Errorf("%w: note id is required", domain.ErrValidation)
	}
	if err := validateContent(content, u.maxChars); err != nil {
		return domain.Note{}, err
	}

	current, err := u.store.Get(ctx, ownerID, noteID)
	if err != nil {
		return domain.Note{}, storeError("load note", err)
	}
	if expectedRevision > 0 && current.Revision != expectedRevision {
		return domain.Note{}, fmt.Errorf("note %s is at revision %d, expected %d: %w", noteID, current.Revision, expectedRevision, domain.ErrConflict)
	}

	return u.reembed(ctx, current, content)
}

func (u *ReindexUseCase) reembed(ctx context.Context, current domain.Note, content string) (domain.Note, error) {
	pending := domain.Note{
		ID:        current.ID,
		OwnerID:   current.OwnerID,
		Content:   content,
		Embedding: domain.Pending(),
		UpdatedAt: u.now().UTC(),
	}
	pending, err := u.store.Write(ctx, pending, current.Revision)
	if err != nil {
		return domain.Note{}, storeError("mark note pending", err)
	}

	vec, embedErr := embedText(ctx, u.embedder, u.embedTimeout, u.store.Dimension(), content)
	if embedErr != nil {
		// Record the failure even if the caller's context is gone so the
		// note does not stay pending.
		failed := pending
		failed.Embedding = domain.Failed(embedErr.Error())
		failed.UpdatedAt = u.now().UTC()
		if _, err := u.store.Write(context.WithoutCancel(ctx), failed, pending.Revision); err != nil && !errors.Is(err, domain.ErrConflict) {
			u.logger.Error("failed to record reembed failure", "owner_id", current.OwnerID, "note_id", current.ID, "error", err)
		}
		u.logger.Warn("reembed failed, note needs reindex", "owner_id", current.OwnerID, "note_id", current.ID, "error", embedErr)
		return domain.Note{}, embedErr
	}

	ready := pending
	ready.Embedding = domain.Ready(vec)
	ready.UpdatedAt = u.now().UTC()
	ready, err = u.store.Write(ctx, ready, pending.Revision)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			u.logger.Info("reembed superseded by concurrent edit", "owner_id", current.OwnerID, "note_id", current.ID)
		}
		return domain.Note{}, storeError("store embedding", err)
	}

	u.publisher.Publish(ctx, domain.NoteEvent{
		OwnerID: ready.OwnerID,
		NoteID:  ready.ID,
		Kind:    domain.EventReindexed,
		At:      ready.UpdatedAt,
	})
	u.logger.Info("note reembedded", "owner_id", ready.OwnerID, "note_id", ready.ID, "revision", ready.Revision)

	return ready, nil
}

// ReindexResult contains the results of a reindex operation.
type ReindexResult struct {
	Reindexed int
	Failed    int
	Conflicts int
	Errors    []string
}

// Reindex re-embeds an owner's notes with their current content. By default
// only pending and failed notes are processed; all includes ready notes, for
// use after the embedding model changed. progress, if set, is called after
// each note with the number processed so far and the total.
func (u *ReindexUseCase) Reindex(ctx context.Context, ownerID string, all bool, progress func(done, total int)) (*ReindexResult, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	notes, err := u.store.List(ctx, ownerID, domain.ListOptions{})
	if err != nil {
		return nil, storeError("list notes", err)
	}

	targets := make([]domain.Note, 0, len(notes))
	for _, note := range notes {
		if all || note.Embedding.State != domain.EmbeddingReady {
			targets = append(targets, note)
		}
	}

	result := &ReindexResult{}
	for i, note := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := u.reembed(ctx, note, note.Content)
		switch {
		case err == nil:
			result.Reindexed++
		case errors.Is(err, domain.ErrConflict):
			result.Conflicts++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", note.ID, err))
		}

		if progress != nil {
			progress(i+1, len(targets))
		}
	}

	u.logger.Info("reindex finished", "owner_id", ownerID, "reindexed", result.Reindexed, "failed", result.Failed, "conflicts", result.Conflicts)
	return result, nil
}

// RetryPending re-embeds the owner's pending and failed notes.
func (u *ReindexUseCase) RetryPending(ctx context.Context, ownerID string, progress func(done, total int)) (*ReindexResult, error) {
	return u.Reindex(ctx, ownerID, false, progress)
}
