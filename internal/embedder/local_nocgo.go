//go:build !cgo

package embedder

import (
	"context"
	"log/slog"
)

// LocalEmbedder is a stub used when cgo is disabled. The in-process model
// runtime is a native library and cannot be linked without cgo.
type LocalEmbedder struct{}

// NewLocalEmbedder always fails with ErrCGORequired.
func NewLocalEmbedder(model string, dimension int, logger *slog.Logger) (*LocalEmbedder, error) {
	return nil, ErrCGORequired
}

func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrCGORequired
}

func (l *LocalEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrCGORequired
}

func (l *LocalEmbedder) Dimension() int { return 0 }

func (l *LocalEmbedder) Close() error { return nil }
