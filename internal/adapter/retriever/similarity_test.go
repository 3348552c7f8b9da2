package retriever

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semnotes/internal/domain"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"different lengths", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score(-0.4))
	assert.Equal(t, 0.0, Score(0))
	assert.Equal(t, 0.25, Score(0.25))
	assert.Equal(t, 1.0, Score(1.0000001))
	assert.Equal(t, 1.0, Score(0.9999999), "rounding noise on identical vectors")
	assert.Equal(t, 0.999, Score(0.999))
	assert.Equal(t, 0.0, Score(math.NaN()))
}

func note(id, owner string, created time.Time, vec ...float32) domain.Note {
	return domain.Note{ID: id, OwnerID: owner, Content: id, Embedding: domain.Ready(vec), CreatedAt: created}
}

func TestRank_FiltersAndOrders(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []domain.Note{
		note("exact", "u1", base, 1, 0),
		note("close", "u1", base.Add(time.Minute), 0.9, 0.1),
		note("far", "u1", base, 0, 1),
		note("other-owner", "u2", base, 1, 0),
		{ID: "pending", OwnerID: "u1", Embedding: domain.Pending(), CreatedAt: base},
		{ID: "failed", OwnerID: "u1", Embedding: domain.Failed("boom"), CreatedAt: base},
		note("wrong-dim", "u1", base, 1, 0, 0),
	}

	results := Rank("u1", candidates, []float32{1, 0}, 0.5, 10)

	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Note.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "close", results[1].Note.ID)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestRank_TieBreaksByCreatedAtThenID(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []domain.Note{
		note("old", "u1", base, 1, 0),
		note("new", "u1", base.Add(time.Hour), 1, 0),
		note("b-same", "u1", base.Add(time.Minute), 1, 0),
		note("a-same", "u1", base.Add(time.Minute), 1, 0),
	}

	results := Rank("u1", candidates, []float32{1, 0}, 0, 10)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Note.ID
	}
	assert.Equal(t, []string{"new", "a-same", "b-same", "old"}, ids)
}

func TestRank_Limit(t *testing.T) {
	base := time.Now()
	candidates := []domain.Note{
		note("n1", "u1", base, 1, 0),
		note("n2", "u1", base, 1, 0),
		note("n3", "u1", base, 1, 0),
	}

	assert.Empty(t, Rank("u1", candidates, []float32{1, 0}, 0, 0))
	assert.Empty(t, Rank("u1", candidates, []float32{1, 0}, 0, -3))
	assert.Len(t, Rank("u1", candidates, []float32{1, 0}, 0, 2), 2)
}

func TestRank_ThresholdOneKeepsOnlyExactMatches(t *testing.T) {
	base := time.Now()
	candidates := []domain.Note{
		note("dup", "u1", base, 2, 0),
		note("near", "u1", base, 1, 0.2),
	}

	results := Rank("u1", candidates, []float32{1, 0}, 1.0, 10)

	require.Len(t, results, 1)
	assert.Equal(t, "dup", results[0].Note.ID)
}
