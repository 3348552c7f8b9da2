package usecase

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"semnotes/config"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// CaptureUseCase turns raw text into a stored, searchable note.
type CaptureUseCase struct {
	store        port.NoteStore
	embedder     port.Embedder
	publisher    port.Publisher
	embedTimeout time.Duration
	maxChars     int
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// NewCaptureUseCase creates a new capture use case. A nil publisher disables
// change notifications.
func NewCaptureUseCase(
	store port.NoteStore,
	embedder port.Embedder,
	publisher port.Publisher,
	cfg *config.Config,
	logger *slog.Logger,
) *CaptureUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureUseCase{
		store:        store,
		embedder:     embedder,
		publisher:    publisher,
		embedTimeout: cfg.Embedding.Timeout,
		maxChars:     cfg.Capture.MaxContentChars,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Capture validates content, embeds it and persists a ready note. Nothing is
// stored unless the embedding succeeded.
func (u *CaptureUseCase) Capture(ctx context.Context, ownerID, content string) (string, error) {
	if err := validateOwner(ownerID); err != nil {
		return "", err
	}
	if err := validateContent(content, u.maxChars); err != nil {
		return "", err
	}

	vec, err := embedText(ctx, u.embedder, u.embedTimeout, u.store.Dimension(), content)
	if err != nil {
		u.logger.Warn("capture embedding failed", "owner_id", ownerID, "error", err)
		return "", err
	}

	now := u.now().UTC()
	note := domain.Note{
		ID:        u.newID(),
		OwnerID:   ownerID,
		Content:   content,
		Embedding: domain.Ready(vec),
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := u.store.Create(ctx, note)
	if err != nil {
		return "", storeError("create note", err)
	}

	u.publisher.Publish(ctx, domain.NoteEvent{
		OwnerID: ownerID,
		NoteID:  created.ID,
		Kind:    domain.EventInserted,
		At:      now,
	})
	u.logger.Info("note captured", "owner_id", ownerID, "note_id", created.ID, "chars", utf8.RuneCountInString(content))

	return created.ID, nil
}
