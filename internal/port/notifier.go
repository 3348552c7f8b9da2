package port

import (
	"context"

	"semnotes/internal/domain"
)

// Publisher fans note events out to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, event domain.NoteEvent)
}
