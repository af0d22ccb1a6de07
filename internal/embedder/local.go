//go:build cgo

package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// LocalEmbedder runs a quantized sentence-transformer in process through
// go-embedeverything. No network access is needed once the model is cached.
type LocalEmbedder struct {
	mu        sync.Mutex
	model     *embedeverything.Embedder
	name      string
	dimension int
	closed    bool
	logger    *slog.Logger
}

// NewLocalEmbedder loads the named model. Loading may download weights on
// first use and can take several seconds.
func NewLocalEmbedder(model string, dimension int, logger *slog.Logger) (*LocalEmbedder, error) {
	m, err := embedeverything.NewEmbedder(model)
	if err != nil {
		return nil, fmt.Errorf("local embedder: loading %s: %w", model, err)
	}
	logger.Info("local embedding model loaded", "model", model, "dimension", dimension)
	return &LocalEmbedder{
		model:     m,
		name:      model,
		dimension: dimension,
		logger:    logger,
	}, nil
}

func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, l, text)
}

// EmbedAll runs the model over texts. The model does not observe ctx once
// started, so cancellation is only checked up front.
func (l *LocalEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	vecs, err := l.model.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("local embedder: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("local embedder: got %d embeddings for %d inputs", len(vecs), len(texts))
	}
	l.logger.Debug("generated embeddings locally", "model", l.name, "count", len(vecs))
	return vecs, nil
}

func (l *LocalEmbedder) Dimension() int { return l.dimension }

// Close frees the model. Further calls return ErrClosed.
func (l *LocalEmbedder) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.model.Close()
	return nil
}
