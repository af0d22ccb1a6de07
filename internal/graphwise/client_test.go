package graphwise

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Ontotext-AD/embedding-model-clients/internal/auth"
	"github.com/Ontotext-AD/embedding-model-clients/internal/embedder"
	"github.com/Ontotext-AD/embedding-model-clients/internal/graphwise/inferencepb"
)

// fakeInference embeds each text as {index, len(text), 1}, where index is
// the decimal number the text starts with (or -1).
type fakeInference struct {
	mu       sync.Mutex
	calls    [][]string
	models   []string
	headers  []metadata.MD
	err      error
	short    bool
	block    chan struct{}
	received chan struct{}
}

func (f *fakeInference) EmbedSentence(ctx context.Context, req *inferencepb.SentenceRequest) (*inferencepb.SentenceResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, req.GetTexts())
	f.models = append(f.models, req.GetModelName())
	f.headers = append(f.headers, md)
	f.mu.Unlock()

	if f.received != nil {
		f.received <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	resp := &inferencepb.SentenceResponse{}
	texts := req.GetTexts()
	if f.short {
		texts = texts[:len(texts)-1]
	}
	for _, text := range texts {
		resp.Embeddings = append(resp.Embeddings, &inferencepb.Embedding{
			Embedding: []float32{float32(leadingNumber(text)), float32(len(text)), 1},
		})
	}
	return resp, nil
}

func (f *fakeInference) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeInference) call(i int) (texts []string, model string, md metadata.MD) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i], f.models[i], f.headers[i]
}

func leadingNumber(text string) int {
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(text[:end])
	if err != nil {
		return -1
	}
	return n
}

// startInference serves svc on a loopback port and returns its port.
func startInference(t *testing.T, svc inferencepb.InferenceServiceServer, opts ...grpc.ServerOption) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer(append([]grpc.ServerOption{grpc.ForceServerCodec(inferencepb.Codec{})}, opts...)...)
	inferencepb.RegisterInferenceServiceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().(*net.TCPAddr).Port
}

func testConfig(port int) Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            port,
		Model:           "test-model",
		ByteBudget:      DefaultBatchSizeKiB * 1024,
		PoolSize:        4,
		PoolIdleTimeout: time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := NewClient(cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_EmptyInputMakesNoCalls(t *testing.T) {
	svc := &fakeInference{}
	c := newTestClient(t, testConfig(startInference(t, svc)))

	vecs, err := c.EmbedAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Equal(t, 0, svc.callCount())
}

func TestClient_SmallInputIsOneCall(t *testing.T) {
	svc := &fakeInference{}
	c := newTestClient(t, testConfig(startInference(t, svc)))

	vecs, err := c.EmbedAll(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)

	require.Equal(t, 1, svc.callCount())
	texts, model, _ := svc.call(0)
	assert.Equal(t, []string{"a", "bb"}, texts)
	assert.Equal(t, "test-model", model)
	assert.Equal(t, [][]float32{{-1, 1, 1}, {-1, 2, 1}}, vecs)
}

func TestClient_Embed(t *testing.T) {
	svc := &fakeInference{}
	c := newTestClient(t, testConfig(startInference(t, svc)))

	vec, err := c.Embed(context.Background(), "42 is the answer")
	require.NoError(t, err)
	assert.Equal(t, []float32{42, 16, 1}, vec)
}

func TestClient_ManyBatchesKeepInputOrder(t *testing.T) {
	svc := &fakeInference{}
	c := newTestClient(t, testConfig(startInference(t, svc)))

	// 1310 estimated bytes each: 200 per 256 KiB batch.
	texts := make([]string, 600)
	for i := range texts {
		prefix := fmt.Sprintf("%05d", i)
		texts[i] = prefix + strings.Repeat("x", 1278-len(prefix))
	}

	vecs, err := c.EmbedAll(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, 3, svc.callCount())
	require.Len(t, vecs, 600)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0], "embedding %d out of order", i)
	}
}

func TestClient_CallerRunsUnderLoadStillCompletes(t *testing.T) {
	svc := &fakeInference{}
	cfg := testConfig(startInference(t, svc))
	cfg.PoolSize = 1
	cfg.ByteBudget = 2 * EstimatedSize("00000")
	c := newTestClient(t, cfg)

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("%05d", i)
	}
	vecs, err := c.EmbedAll(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, 20, svc.callCount())
	require.Len(t, vecs, 40)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestClient_OversizedItemStillDispatched(t *testing.T) {
	svc := &fakeInference{}
	cfg := testConfig(startInference(t, svc))
	cfg.ByteBudget = 1024
	c := newTestClient(t, cfg)

	huge := strings.Repeat("x", 1000000)
	vecs, err := c.EmbedAll(context.Background(), []string{huge})
	require.NoError(t, err)

	assert.Equal(t, 1, svc.callCount())
	require.Len(t, vecs, 1)
	assert.Equal(t, float32(1000000), vecs[0][1])
}

func TestClient_UnauthenticatedIsAuthenticationError(t *testing.T) {
	svc := &fakeInference{}
	port := startInference(t, svc, grpc.UnaryInterceptor(auth.UnaryServerInterceptor("server-secret", time.Minute)))
	cfg := testConfig(port)
	cfg.Secret = "wrong-secret"
	c := newTestClient(t, cfg)

	_, err := c.EmbedAll(context.Background(), []string{"a"})
	require.Error(t, err)

	var authErr *embedder.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "graphwise", authErr.Provider)
	assert.Contains(t, err.Error(), "verify the shared secret")
	assert.Equal(t, codes.Unauthenticated, status.Code(authErr.Err))
}

func TestClient_SignedCallsAreAccepted(t *testing.T) {
	svc := &fakeInference{}
	port := startInference(t, svc, grpc.UnaryInterceptor(auth.UnaryServerInterceptor("s3cret", time.Minute)))
	cfg := testConfig(port)
	cfg.Secret = "s3cret"
	c := newTestClient(t, cfg)

	_, err := c.EmbedAll(context.Background(), []string{"a"})
	require.NoError(t, err)

	_, _, md := svc.call(0)
	ts := md.Get(auth.TimestampHeader)
	require.Len(t, ts, 1)
	assert.Equal(t, []string{auth.Sign("s3cret", ts[0])}, md.Get(auth.SignatureHeader))
}

func TestClient_NoSecretSendsNoSignature(t *testing.T) {
	svc := &fakeInference{}
	c := newTestClient(t, testConfig(startInference(t, svc)))

	_, err := c.EmbedAll(context.Background(), []string{"a"})
	require.NoError(t, err)
	_, _, md := svc.call(0)
	assert.Empty(t, md.Get(auth.TimestampHeader))
	assert.Empty(t, md.Get(auth.SignatureHeader))
}

func TestClient_TransportErrorIsPropagated(t *testing.T) {
	svc := &fakeInference{err: status.Error(codes.Internal, "model exploded")}
	c := newTestClient(t, testConfig(startInference(t, svc)))

	_, err := c.EmbedAll(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.False(t, embedder.IsAuthentication(err))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.ErrorContains(t, err, "model exploded")
}

func TestClient_ShortResponseIsAnError(t *testing.T) {
	svc := &fakeInference{short: true}
	c := newTestClient(t, testConfig(startInference(t, svc)))

	vecs, err := c.EmbedAll(context.Background(), []string{"a", "b"})
	assert.Nil(t, vecs)
	assert.ErrorContains(t, err, "1 embeddings for 2 texts")
}

func TestClient_UnreachableServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	c := newTestClient(t, testConfig(port))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = c.EmbedAll(ctx, []string{"a"})
	require.Error(t, err)
	assert.False(t, embedder.IsAuthentication(err))
}

func TestClient_Dimension(t *testing.T) {
	svc := &fakeInference{}
	port := startInference(t, svc)

	configured := testConfig(port)
	configured.Dimension = 7
	assert.Equal(t, 7, newTestClient(t, configured).Dimension())
	assert.Equal(t, 0, svc.callCount())

	probed := newTestClient(t, testConfig(port))
	assert.Equal(t, 3, probed.Dimension())
	assert.Equal(t, 1, svc.callCount())
	assert.Equal(t, 3, probed.Dimension())
	assert.Equal(t, 1, svc.callCount())
}

func TestClient_CloseForcesStuckCalls(t *testing.T) {
	svc := &fakeInference{block: make(chan struct{}), received: make(chan struct{}, 1)}
	cfg := testConfig(startInference(t, svc))
	cfg.ShutdownTimeout = 100 * time.Millisecond
	c, err := NewClient(cfg, discardLogger())
	require.NoError(t, err)
	defer close(svc.block)

	callErr := make(chan error, 1)
	go func() {
		_, err := c.EmbedAll(context.Background(), []string{"a"})
		callErr <- err
	}()
	<-svc.received

	start := time.Now()
	require.NoError(t, c.Close())
	assert.Less(t, time.Since(start), 3*time.Second)

	select {
	case err := <-callErr:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight call was not terminated by Close")
	}

	_, err = c.EmbedAll(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, embedder.ErrClosed)
	assert.NoError(t, c.Close())
}

func TestClient_CloseWaitsForInFlightCalls(t *testing.T) {
	svc := &fakeInference{block: make(chan struct{}), received: make(chan struct{}, 1)}
	c, err := NewClient(testConfig(startInference(t, svc)), discardLogger())
	require.NoError(t, err)

	callErr := make(chan error, 1)
	go func() {
		_, err := c.EmbedAll(context.Background(), []string{"a"})
		callErr <- err
	}()
	<-svc.received

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()

	time.Sleep(50 * time.Millisecond)
	close(svc.block)

	require.NoError(t, <-callErr)
	require.NoError(t, <-closed)
}

func TestClient_ShutdownInterrupted(t *testing.T) {
	svc := &fakeInference{block: make(chan struct{}), received: make(chan struct{}, 1)}
	cfg := testConfig(startInference(t, svc))
	cfg.ShutdownTimeout = time.Minute
	c, err := NewClient(cfg, discardLogger())
	require.NoError(t, err)
	defer close(svc.block)

	go func() { _, _ = c.EmbedAll(context.Background(), []string{"a"}) }()
	<-svc.received

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err = c.Shutdown(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 5*time.Second)

	_, err = c.EmbedAll(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, embedder.ErrClosed)
}

func TestNewClient_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty host", func(c *Config) { c.Host = "" }, "host"},
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port too big", func(c *Config) { c.Port = 70000 }, "port"},
		{"no model", func(c *Config) { c.Model = "" }, "model"},
		{"zero budget", func(c *Config) { c.ByteBudget = 0 }, "byte budget"},
		{"zero pool", func(c *Config) { c.PoolSize = 0 }, "pool size"},
		{"negative pool", func(c *Config) { c.PoolSize = -2 }, "pool size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(5050)
			tt.mutate(&cfg)
			_, err := NewClient(cfg, discardLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Target(t *testing.T) {
	assert.Equal(t, "passthrough:///localhost:5050", Config{Host: "localhost", Port: 5050}.Target())
	assert.Equal(t, "passthrough:///[::1]:5050", Config{Host: "::1", Port: 5050}.Target())
}
