package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding of text. Implementations must be
	// deterministic for identical text and model, and must honour ctx
	// cancellation so a timeout aborts the whole calling operation.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
