package embedder

import "context"

// Embedder generates vector embeddings from text.
//
// All vectors produced by one Embedder share the same length, reported by
// Dimension. Implementations are safe for concurrent use.
type Embedder interface {
	// Embed returns a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedAll returns one embedding per text, in input order. On failure no
	// partial result is returned.
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Close releases connections, worker goroutines or model memory.
	Close() error
}

// embedOne adapts EmbedAll to the single-text Embed method.
func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ErrNoEmbedding
	}
	return vecs[0], nil
}
