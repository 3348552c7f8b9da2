package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"semnotes/config"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// SearchQuery is a semantic search request. Nil Limit and Threshold take the
// configured defaults.
type SearchQuery struct {
	OwnerID   string
	Text      string
	Limit     *int
	Threshold *float64
}

// SearchUseCase handles semantic search over an owner's notes.
type SearchUseCase struct {
	store            port.NoteStore
	embedder         port.Embedder
	embedTimeout     time.Duration
	defaultLimit     int
	maxLimit         int
	defaultThreshold float64
	logger           *slog.Logger
}

// NewSearchUseCase creates a new search use case.
func NewSearchUseCase(store port.NoteStore, embedder port.Embedder, cfg *config.Config, logger *slog.Logger) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		store:            store,
		embedder:         embedder,
		embedTimeout:     cfg.Embedding.Timeout,
		defaultLimit:     cfg.Search.DefaultLimit,
		maxLimit:         cfg.Search.MaxLimit,
		defaultThreshold: cfg.Search.Threshold,
		logger:           logger,
	}
}

// Search returns the owner's notes most similar to q.Text, best first.
// A blank query or a non-positive limit yields no results without calling
// the embedding provider.
func (u *SearchUseCase) Search(ctx context.Context, q SearchQuery) ([]domain.SimilarityResult, error) {
	if err := validateOwner(q.OwnerID); err != nil {
		return nil, err
	}

	limit := u.defaultLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	if u.maxLimit > 0 && limit > u.maxLimit {
		limit = u.maxLimit
	}

	threshold := u.defaultThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be within [0,1], got %v", domain.ErrValidation, threshold)
	}

	if strings.TrimSpace(q.Text) == "" || limit <= 0 {
		return []domain.SimilarityResult{}, nil
	}

	vec, err := embedText(ctx, u.embedder, u.embedTimeout, u.store.Dimension(), q.Text)
	if err != nil {
		u.logger.Warn("search embedding failed", "owner_id", q.OwnerID, "error", err)
		return nil, err
	}

	results, err := u.store.SimilaritySearch(ctx, q.OwnerID, vec, threshold, limit)
	if err != nil {
		return nil, storeError("search notes", err)
	}

	u.logger.Debug("search", "owner_id", q.OwnerID, "limit", limit, "threshold", threshold, "results", len(results))
	return results, nil
}
