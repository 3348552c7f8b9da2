package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semnotes/config"
	"semnotes/internal/adapter/embedding"
	"semnotes/internal/adapter/fs"
	"semnotes/internal/adapter/memstore"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// errPassThrough makes a hook hand the call on to the wrapped embedder.
var errPassThrough = errors.New("pass through")

type embedHook func(ctx context.Context, text string) ([]float32, error)

// stubEmbedder delegates to a LocalEmbedder unless hook intercepts the call.
type stubEmbedder struct {
	inner *embedding.LocalEmbedder
	hook  embedHook

	mu    sync.Mutex
	calls []string
}

func newStub(inner *embedding.LocalEmbedder) *stubEmbedder {
	return &stubEmbedder{inner: inner}
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		if vec, err := hook(ctx, text); err != errPassThrough {
			return vec, err
		}
	}
	return s.inner.Embed(ctx, text)
}

func (s *stubEmbedder) Dimension() int { return s.inner.Dimension() }
func (s *stubEmbedder) ModelName() string { return "stub" }

func (s *stubEmbedder) setHook(h embedHook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.NoteEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.NoteEvent) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type harness struct {
	cfg       *config.Config
	store     *memstore.MemoryStore
	embedder  *stubEmbedder
	publisher *recordingPublisher
	capture   *CaptureUseCase
	reindex   *ReindexUseCase
	search    *SearchUseCase
	notes     *NotesUseCase
}

func newHarness(t *testing.T, inner *embedding.LocalEmbedder) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Embedding.Timeout = 2 * time.Second

	h := &harness{
		cfg:       cfg,
		store:     memstore.NewMemoryStore(inner.Dimension()),
		embedder:  newStub(inner),
		publisher: &recordingPublisher{},
	}
	h.capture = NewCaptureUseCase(h.store, h.embedder, h.publisher, cfg, discard)
	h.reindex = NewReindexUseCase(h.store, h.embedder, h.publisher, cfg, discard)
	h.search = NewSearchUseCase(h.store, h.embedder, cfg, discard)
	h.notes = NewNotesUseCase(h.store, h.publisher, discard)

	// Deterministic ids and strictly increasing timestamps.
	var (
		mu  sync.Mutex
		seq int
	)
	clock := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	h.capture.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("n%d", seq)
	}
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	h.capture.now = tick
	h.reindex.now = tick
	h.notes.now = tick
	return h
}

func vocabulary() *embedding.LocalEmbedder {
	return embedding.NewVocabularyEmbedder([]string{
		"love", "building", "ai", "products", "weather", "nice", "today",
		"groceries", "milk", "eggs", "meeting", "notes",
	})
}

func hashing() *embedding.LocalEmbedder {
	return embedding.NewLocalEmbedder(256)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func (h *harness) searchIDs(t *testing.T, owner, text string, limit int, threshold float64) []string {
	t.Helper()
	results, err := h.search.Search(context.Background(), SearchQuery{
		OwnerID: owner, Text: text, Limit: intPtr(limit), Threshold: floatPtr(threshold),
	})
	require.NoError(t, err)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Note.ID
	}
	return ids
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	n1, err := h.capture.Capture(ctx, "u1", "I love building AI products")
	require.NoError(t, err)
	assert.Equal(t, "n1", n1)
	n2, err := h.capture.Capture(ctx, "u1", "The weather is nice today")
	require.NoError(t, err)
	assert.Equal(t, "n2", n2)

	results, err := h.search.Search(ctx, SearchQuery{OwnerID: "u1", Text: "AI", Limit: intPtr(5), Threshold: floatPtr(0.3)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, n1, results[0].Note.ID)
	assert.InDelta(t, 0.5, results[0].Score, 1e-6)
}

func TestCaptureThenSearchFindsSelf(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())

	contents := []string{
		"buy milk and eggs",
		"Quarterly planning meeting notes",
		"the",
		"  résumé drafts  ",
		"a",
	}
	for _, content := range contents {
		id, err := h.capture.Capture(ctx, "u1", content)
		require.NoError(t, err)

		results, err := h.search.Search(ctx, SearchQuery{OwnerID: "u1", Text: content})
		require.NoError(t, err)

		var found bool
		for _, r := range results {
			if r.Note.ID == id {
				found = true
				assert.GreaterOrEqual(t, r.Score, h.cfg.Search.Threshold)
			}
		}
		assert.True(t, found, "capture of %q not found by its own content", content)
	}
}

func TestCaptureValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())
	h.cfg.Capture.MaxContentChars = 5
	h.capture = NewCaptureUseCase(h.store, h.embedder, h.publisher, h.cfg, discard)

	tests := []struct {
		name    string
		owner   string
		content string
	}{
		{"empty content", "u1", ""},
		{"whitespace content", "u1", " \t\n"},
		{"empty owner", "", "hello"},
		{"too long", "u1", "abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.capture.Capture(ctx, tt.owner, tt.content)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	assert.Zero(t, h.embedder.callCount(), "validation happens before embedding")
	notes, err := h.store.List(ctx, "u1", domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Empty(t, h.publisher.kinds())

	_, err = h.capture.Capture(ctx, "u1", "héllo")
	assert.NoError(t, err, "limit counts characters, not bytes")
}

func TestCaptureUpstreamFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())
	boom := errors.New("provider unavailable")
	h.embedder.setHook(func(context.Context, string) ([]float32, error) {
		return nil, boom
	})

	_, err := h.capture.Capture(ctx, "u1", "hello")
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))

	notes, err := h.store.List(ctx, "u1", domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Empty(t, h.publisher.kinds())
}

func TestCaptureTimeoutCancelsOperation(t *testing.T) {
	h := newHarness(t, hashing())
	h.cfg.Embedding.Timeout = 20 * time.Millisecond
	h.capture = NewCaptureUseCase(h.store, h.embedder, h.publisher, h.cfg, discard)
	h.embedder.setHook(func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	_, err := h.capture.Capture(context.Background(), "u1", "hello")
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCaptureRejectsWrongDimension(t *testing.T) {
	h := newHarness(t, hashing())
	h.embedder.setHook(func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	})

	_, err := h.capture.Capture(context.Background(), "u1", "hello")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestCapturePublishesInsert(t *testing.T) {
	h := newHarness(t, hashing())

	id, err := h.capture.Capture(context.Background(), "u1", "hello")
	require.NoError(t, err)

	require.Len(t, h.publisher.events, 1)
	ev := h.publisher.events[0]
	assert.Equal(t, "u1", ev.OwnerID)
	assert.Equal(t, id, ev.NoteID)
	assert.Equal(t, domain.EventInserted, ev.Kind)
}

func TestSearchScopedToOwner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	_, err := h.capture.Capture(ctx, "A", "buy milk and eggs")
	require.NoError(t, err)

	assert.Empty(t, h.searchIDs(t, "B", "buy milk and eggs", 10, 0))
	assert.Len(t, h.searchIDs(t, "A", "buy milk and eggs", 10, 0), 1)
}

func TestSearchBlankQuery(t *testing.T) {
	h := newHarness(t, hashing())

	for _, q := range []string{"", "   ", "\n\t"} {
		results, err := h.search.Search(context.Background(), SearchQuery{OwnerID: "u1", Text: q})
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
	assert.Zero(t, h.embedder.callCount())
}

func TestSearchValidation(t *testing.T) {
	h := newHarness(t, hashing())
	ctx := context.Background()

	_, err := h.search.Search(ctx, SearchQuery{OwnerID: "", Text: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	for _, th := range []float64{-0.1, 1.5, math.NaN()} {
		_, err = h.search.Search(ctx, SearchQuery{OwnerID: "u1", Text: "x", Threshold: floatPtr(th)})
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestSearchLimits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())
	h.cfg.Search.MaxLimit = 2
	h.search = NewSearchUseCase(h.store, h.embedder, h.cfg, discard)

	for i := 0; i < 3; i++ {
		_, err := h.capture.Capture(ctx, "u1", "milk eggs")
		require.NoError(t, err)
	}

	calls := h.embedder.callCount()
	assert.Empty(t, h.searchIDs(t, "u1", "milk eggs", 0, 0))
	assert.Empty(t, h.searchIDs(t, "u1", "milk eggs", -3, 0))
	assert.Equal(t, calls, h.embedder.callCount(), "non-positive limit never embeds")

	assert.Len(t, h.searchIDs(t, "u1", "milk eggs", 50, 0), 2, "limit is clamped")
	assert.Equal(t, []string{"n3", "n2"}, h.searchIDs(t, "u1", "milk eggs", 2, 0), "equal scores newest first")
}

func TestSearchThresholdOneReturnsDuplicatesOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	dup, err := h.capture.Capture(ctx, "u1", "milk eggs")
	require.NoError(t, err)
	_, err = h.capture.Capture(ctx, "u1", "milk eggs groceries")
	require.NoError(t, err)

	assert.Equal(t, []string{dup}, h.searchIDs(t, "u1", "eggs milk", 10, 1.0))
}

func TestSearchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())
	for _, c := range []string{"milk eggs", "meeting notes", "nice weather today", "milk"} {
		_, err := h.capture.Capture(ctx, "u1", c)
		require.NoError(t, err)
	}

	first := h.searchIDs(t, "u1", "milk notes", 10, 0.1)
	second := h.searchIDs(t, "u1", "milk notes", 10, 0.1)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestReembedSameContentKeepsScores(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	id, err := h.capture.Capture(ctx, "u1", "milk eggs groceries")
	require.NoError(t, err)
	_, err = h.capture.Capture(ctx, "u1", "meeting notes")
	require.NoError(t, err)

	scores := func(query string) map[string]float64 {
		results, err := h.search.Search(ctx, SearchQuery{OwnerID: "u1", Text: query, Threshold: floatPtr(0)})
		require.NoError(t, err)
		out := make(map[string]float64, len(results))
		for _, r := range results {
			out[r.Note.ID] = r.Score
		}
		return out
	}

	selfBefore := scores("milk eggs groceries")
	otherBefore := scores("milk")

	_, err = h.reindex.Reembed(ctx, "u1", id, "milk eggs groceries", 0)
	require.NoError(t, err)

	selfAfter := scores("milk eggs groceries")
	otherAfter := scores("milk")

	require.Contains(t, selfAfter, id)
	assert.InDelta(t, 1.0, selfAfter[id], 1e-9)
	assert.InDelta(t, selfBefore[id], selfAfter[id], 1e-9)
	assert.InDelta(t, otherBefore[id], otherAfter[id], 1e-9)
	assert.Equal(t, len(selfBefore), len(selfAfter))
}

func TestSearchUsesConfiguredDefaults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	// cosine("milk eggs groceries", "milk") = 0.577, below the 0.7 default.
	_, err := h.capture.Capture(ctx, "u1", "milk eggs groceries")
	require.NoError(t, err)

	results, err := h.search.Search(ctx, SearchQuery{OwnerID: "u1", Text: "milk"})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = h.search.Search(ctx, SearchQuery{OwnerID: "u1", Text: "milk", Threshold: floatPtr(0.5)})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestReembedReplacesVector(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	id, err := h.capture.Capture(ctx, "u1", "buy milk")
	require.NoError(t, err)

	note, err := h.reindex.Reembed(ctx, "u1", id, "weather today", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), note.Revision, "pending and ready writes each bump the revision")
	assert.Equal(t, domain.EmbeddingReady, note.Embedding.State)

	assert.Empty(t, h.searchIDs(t, "u1", "milk", 10, 0.1))
	assert.Equal(t, []string{id}, h.searchIDs(t, "u1", "weather", 10, 0.1))
	assert.Equal(t, []domain.EventKind{domain.EventInserted, domain.EventReindexed}, h.publisher.kinds())

	stored, err := h.store.Get(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "weather today", stored.Content)
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt))
}

func TestReembedScopedToOwner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())

	id, err := h.capture.Capture(ctx, "A", "private")
	require.NoError(t, err)

	_, err = h.reindex.Reembed(ctx, "B", id, "hijacked", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = h.reindex.Reembed(ctx, "A", "missing", "x", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.reindex.Reembed(ctx, "A", id, "  ", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err := h.store.Get(ctx, "A", id)
	require.NoError(t, err)
	assert.Equal(t, "private", stored.Content)
}

func TestReembedStaleRevision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())

	id, err := h.capture.Capture(ctx, "u1", "v1")
	require.NoError(t, err)
	_, err = h.reindex.Reembed(ctx, "u1", id, "v2", 1)
	require.NoError(t, err)

	_, err = h.reindex.Reembed(ctx, "u1", id, "v3 from stale editor", 1)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	stored, err := h.store.Get(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "v2", stored.Content)
}

func TestReembedFailureLeavesNoteFailed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	id, err := h.capture.Capture(ctx, "u1", "buy milk")
	require.NoError(t, err)

	h.embedder.setHook(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("quota exceeded")
	})
	_, err = h.reindex.Reembed(ctx, "u1", id, "nice weather", 0)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	stored, err := h.store.Get(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "nice weather", stored.Content, "the edit itself is kept")
	assert.Equal(t, domain.EmbeddingFailed, stored.Embedding.State)
	assert.Contains(t, stored.Embedding.Reason, "quota exceeded")

	h.embedder.setHook(nil)
	assert.Empty(t, h.searchIDs(t, "u1", "milk", 10, 0), "old vector is gone")
	assert.Empty(t, h.searchIDs(t, "u1", "weather", 10, 0), "failed note is not searchable")

	failed, err := h.notes.List(ctx, "u1", domain.EmbeddingFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].ID)

	result, err := h.reindex.RetryPending(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reindexed)
	assert.Equal(t, []string{id}, h.searchIDs(t, "u1", "weather", 10, 0.5))
}

func TestReembedTimeoutStillRecordsFailure(t *testing.T) {
	h := newHarness(t, hashing())
	id, err := h.capture.Capture(context.Background(), "u1", "draft")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h.embedder.setHook(func(ctx context.Context, _ string) ([]float32, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err = h.reindex.Reembed(ctx, "u1", id, "final", 0)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	stored, err := h.store.Get(context.Background(), "u1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, stored.Embedding.State)
}

func TestReembedNeverSearchableWithStaleVector(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	id, err := h.capture.Capture(ctx, "u1", "buy milk")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	h.embedder.setHook(func(ctx context.Context, text string) ([]float32, error) {
		if text != "weather today" {
			return nil, errPassThrough
		}
		close(started)
		<-release
		return nil, errPassThrough
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.reindex.Reembed(ctx, "u1", id, "weather today", 0)
		done <- err
	}()

	<-started
	assert.Empty(t, h.searchIDs(t, "u1", "milk", 10, 0), "old content must not match while pending")
	assert.Empty(t, h.searchIDs(t, "u1", "weather", 10, 0), "new content is not indexed yet")

	pending, err := h.notes.List(ctx, "u1", domain.EmbeddingPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{id}, h.searchIDs(t, "u1", "weather", 10, 0.5))
}

func TestReembedConcurrentEditWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	id, err := h.capture.Capture(ctx, "u1", "buy milk")
	require.NoError(t, err)

	// While the first edit waits on the provider, a second edit lands.
	h.embedder.setHook(func(ctx context.Context, text string) ([]float32, error) {
		if text != "first edit weather" {
			return nil, errPassThrough
		}
		_, err := h.reindex.Reembed(ctx, "u1", id, "second edit eggs", 0)
		require.NoError(t, err)
		return nil, errPassThrough
	})

	_, err = h.reindex.Reembed(ctx, "u1", id, "first edit weather", 0)
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored, err := h.store.Get(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "second edit eggs", stored.Content)
	assert.Equal(t, domain.EmbeddingReady, stored.Embedding.State)
	assert.Equal(t, []string{id}, h.searchIDs(t, "u1", "eggs", 10, 0.5))
	assert.Empty(t, h.searchIDs(t, "u1", "weather", 10, 0.1))
}

func TestReindexAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())

	for _, c := range []string{"one", "two", "three"} {
		_, err := h.capture.Capture(ctx, "u1", c)
		require.NoError(t, err)
	}
	_, err := h.capture.Capture(ctx, "u2", "other owner")
	require.NoError(t, err)

	var last [2]int
	result, err := h.reindex.Reindex(ctx, "u1", true, func(done, total int) { last = [2]int{done, total} })
	require.NoError(t, err)
	assert.Equal(t, 3, result.Reindexed)
	assert.Equal(t, [2]int{3, 3}, last)

	result, err = h.reindex.RetryPending(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, result.Reindexed, "nothing pending")

	other, err := h.store.Get(ctx, "u2", "n4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Revision, "other owners are untouched")
}

func TestNotesListAndDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())

	first, err := h.capture.Capture(ctx, "u1", "first")
	require.NoError(t, err)
	second, err := h.capture.Capture(ctx, "u1", "second")
	require.NoError(t, err)

	notes, err := h.notes.List(ctx, "u1", "", 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, second, notes[0].ID, "newest first")

	_, err = h.notes.List(ctx, "u1", "bogus", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.ErrorIs(t, h.notes.Delete(ctx, "u2", first), domain.ErrNotFound)
	require.NoError(t, h.notes.Delete(ctx, "u1", first))
	_, err = h.notes.Get(ctx, "u1", first)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []domain.EventKind{domain.EventInserted, domain.EventInserted, domain.EventDeleted}, h.publisher.kinds())
}

type failingStore struct {
	port.NoteStore
}

func (failingStore) Create(context.Context, domain.Note) (domain.Note, error) {
	return domain.Note{}, errors.New("disk full")
}

func (failingStore) SimilaritySearch(context.Context, string, []float32, float64, int) ([]domain.SimilarityResult, error) {
	return nil, errors.New("io error")
}

func TestStoreFailuresArePersistenceErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, hashing())
	store := failingStore{NoteStore: h.store}

	capture := NewCaptureUseCase(store, h.embedder, h.publisher, h.cfg, discard)
	_, err := capture.Capture(ctx, "u1", "hello")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))
	assert.Empty(t, h.publisher.kinds(), "no event for a note that was not stored")

	search := NewSearchUseCase(store, h.embedder, h.cfg, discard)
	results, err := search.Search(ctx, SearchQuery{OwnerID: "u1", Text: "hello"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Nil(t, results, "no partial results")
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, vocabulary())

	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	write("groceries.md", "milk eggs")
	write("journal/day1.txt", "nice weather today")
	write("empty.md", "   ")
	write("code.go", "package main")

	walker := fs.NewWalker([]string{"**/*.md", "**/*.txt"}, nil, 1024)
	importer := NewImportUseCase(h.capture, walker, discard)

	calls := 0
	result, err := importer.Import(ctx, "u1", root, func(done, total int) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesImported)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.NoteIDs, 2)
	assert.Equal(t, 3, calls)

	assert.Len(t, h.searchIDs(t, "u1", "weather", 10, 0.3), 1)

	_, err = importer.Import(ctx, "", root, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
