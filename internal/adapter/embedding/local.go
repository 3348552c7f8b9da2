package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"semnotes/internal/adapter/analyzer"
)

// LocalEmbedder produces L2-normalised bag-of-words vectors without any
// network call. Terms are either hashed into a fixed number of buckets or,
// when a vocabulary is given, mapped to one dimension per vocabulary word.
// Vectors are non-negative, so cosine similarity stays within [0,1].
type LocalEmbedder struct {
	tokenizer  *analyzer.Tokenizer
	dimension  int
	vocabulary map[string]int
}

// NewLocalEmbedder creates a hashing embedder with the given dimension.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 512
	}
	return &LocalEmbedder{
		tokenizer: analyzer.NewTokenizer(2),
		dimension: dimension,
	}
}

// NewVocabularyEmbedder creates an embedder over a fixed vocabulary. Terms
// outside the vocabulary are ignored.
func NewVocabularyEmbedder(vocabulary []string) *LocalEmbedder {
	index := make(map[string]int, len(vocabulary))
	for _, word := range vocabulary {
		word = strings.ToLower(word)
		if _, ok := index[word]; !ok {
			index[word] = len(index)
		}
	}
	return &LocalEmbedder{
		tokenizer:  analyzer.NewTokenizer(2),
		dimension:  len(index),
		vocabulary: index,
	}
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimension)
	tf := e.tokenizer.TermFrequencies(text)
	if len(tf) == 0 && e.vocabulary == nil {
		// Text made only of stopwords still gets a stable, non-zero vector.
		if trimmed := strings.ToLower(strings.TrimSpace(text)); trimmed != "" {
			tf[trimmed] = 1
		}
	}

	for term, count := range tf {
		idx, ok := e.bucket(term)
		if !ok {
			continue
		}
		vec[idx] += float32(count)
	}

	normalize(vec)
	return vec, nil
}

func (e *LocalEmbedder) bucket(term string) (int, bool) {
	if e.vocabulary != nil {
		idx, ok := e.vocabulary[term]
		return idx, ok
	}
	h := fnv.New32a()
	h.Write([]byte(term))
	return int(h.Sum32() % uint32(e.dimension)), true
}

func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func (e *LocalEmbedder) ModelName() string {
	if e.vocabulary != nil {
		return "bow-vocabulary"
	}
	return "bow-hash"
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
