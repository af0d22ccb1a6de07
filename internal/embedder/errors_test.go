package embedder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticationError(t *testing.T) {
	cause := errors.New("rpc error: code = Unauthenticated")
	err := fmt.Errorf("embedding: %w", &AuthenticationError{Provider: "graphwise", Hint: "please verify the shared secret", Err: cause})

	assert.True(t, IsAuthentication(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "embedding: graphwise: authentication failed: please verify the shared secret", err.Error())

	assert.False(t, IsAuthentication(cause))
	assert.False(t, IsAuthentication(nil))
}

type staticEmbedder struct {
	vecs [][]float32
	err  error
}

func (s staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, s, text)
}

func (s staticEmbedder) EmbedAll(context.Context, []string) ([][]float32, error) {
	return s.vecs, s.err
}

func (s staticEmbedder) Dimension() int { return 2 }
func (s staticEmbedder) Close() error   { return nil }

func TestEmbedOne(t *testing.T) {
	vec, err := staticEmbedder{vecs: [][]float32{{1, 2}}}.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	_, err = staticEmbedder{}.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoEmbedding)

	_, err = staticEmbedder{err: ErrClosed}.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}
