package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// embedText calls the provider under timeout and checks the vector against
// the store dimension. Every failure is reported as ErrUpstream.
func embedText(ctx context.Context, embedder port.Embedder, timeout time.Duration, dimension int, text string) ([]float32, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty vector", domain.ErrUpstream, embedder.ModelName())
	}
	if dimension > 0 && len(vec) != dimension {
		return nil, fmt.Errorf("%w: %s returned %d dimensions, store expects %d", domain.ErrUpstream, embedder.ModelName(), len(vec), dimension)
	}
	return vec, nil
}

// storeError classifies an error returned by a NoteStore. Kinds the store
// already reports pass through; anything else is a persistence failure.
func storeError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrPersistence, op, err)
}

// validateContent rejects blank and oversized note content.
func validateContent(content string, maxChars int) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content must not be empty", domain.ErrValidation)
	}
	if maxChars > 0 {
		if n := utf8.RuneCountInString(content); n > maxChars {
			return fmt.Errorf("%w: content has %d characters, limit is %d", domain.ErrValidation, n, maxChars)
		}
	}
	return nil
}

func validateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner_id is required", domain.ErrValidation)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.NoteEvent) {}
