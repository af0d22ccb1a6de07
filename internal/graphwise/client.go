// Package graphwise is a client for the Graphwise Transformer embedding
// service. Input texts are split into byte-bounded batches, each batch is
// sent as one signed EmbedSentence call on a bounded worker pool, and the
// answers are joined back in input order.
package graphwise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/Ontotext-AD/embedding-model-clients/internal/auth"
	"github.com/Ontotext-AD/embedding-model-clients/internal/embedder"
	"github.com/Ontotext-AD/embedding-model-clients/internal/graphwise/inferencepb"
	"github.com/Ontotext-AD/embedding-model-clients/internal/metrics"
)

const (
	dimensionProbeText    = "dimension probe"
	dimensionProbeTimeout = 30 * time.Second
)

var _ embedder.Embedder = (*Client)(nil)

// Client embeds texts through the remote inference service. It is safe for
// concurrent use and must be closed to release its connection and workers.
type Client struct {
	cfg    Config
	conn   *grpc.ClientConn
	stub   inferencepb.InferenceServiceClient
	pool   *Pool
	logger *slog.Logger

	dimension atomic.Int64
	probeMu   sync.Mutex

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Option customises NewClient.
type Option func(*clientOptions)

type clientOptions struct {
	dialOpts []grpc.DialOption
}

// WithDialOptions appends extra gRPC dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *clientOptions) {
		o.dialOpts = append(o.dialOpts, opts...)
	}
}

// NewClient validates cfg and opens a plaintext channel to the service.
// The connection is established lazily on the first call.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(inferencepb.Codec{})),
	}
	if signer := auth.NewSigner(cfg.Secret); signer != nil {
		dialOpts = append(dialOpts, grpc.WithChainUnaryInterceptor(auth.UnaryClientInterceptor(signer)))
	} else {
		logger.Warn("graphwise: no shared secret configured, requests are not signed")
	}
	dialOpts = append(dialOpts, o.dialOpts...)

	conn, err := grpc.NewClient(cfg.Target(), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("graphwise: creating channel to %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	poolCfg := cfg.PoolConfig()
	c := &Client{
		cfg:    cfg,
		conn:   conn,
		stub:   inferencepb.NewInferenceServiceClient(conn),
		pool:   NewPool(poolCfg, logger),
		logger: logger,
	}
	c.dimension.Store(int64(cfg.Dimension))

	logger.Info("graphwise client ready",
		"host", cfg.Host, "port", cfg.Port, "model", cfg.Model,
		"byte_budget", cfg.ByteBudget, "max_workers", poolCfg.MaxWorkers, "queue", poolCfg.QueueSize)
	return c, nil
}

// Model returns the model name sent with every request.
func (c *Client) Model() string { return c.cfg.Model }

// Embed returns the embedding of a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// batchResult is the outcome of one EmbedSentence call: vectors or err.
type batchResult struct {
	vectors [][]float32
	err     error
}

// EmbedAll returns one embedding per text, in input order. Batches run
// concurrently; the first failing batch (in batch order) aborts the call,
// cancels the remaining batches and discards all results. A rejected
// signature is reported as *embedder.AuthenticationError.
func (c *Client) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.inflight.Done()

	if len(texts) == 0 {
		return nil, nil
	}
	metrics.Inc(metrics.EmbedCalls)
	metrics.Add(metrics.EmbedTexts, len(texts))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := Split(texts, c.cfg.ByteBudget)
	results := make([]batchResult, len(batches))
	done := make([]chan struct{}, len(batches))

	c.logger.Debug("graphwise: dispatching", "texts", len(texts), "batches", len(batches))

	for i, batch := range batches {
		done[i] = make(chan struct{})
		c.pool.Submit(func(poolCtx context.Context) {
			defer close(done[i])
			results[i] = c.call(ctx, poolCtx, i, batch)
		})
	}

	vecs := make([][]float32, 0, len(texts))
	for i := range batches {
		<-done[i]
		if err := results[i].err; err != nil {
			return nil, c.classify(i, err)
		}
		vecs = append(vecs, results[i].vectors...)
	}
	return vecs, nil
}

// Dimension returns the configured or learned embedding size. When neither
// is known yet it embeds a probe text once; on failure it logs and returns 0.
func (c *Client) Dimension() int {
	if d := c.dimension.Load(); d > 0 {
		return int(d)
	}

	c.probeMu.Lock()
	defer c.probeMu.Unlock()
	if d := c.dimension.Load(); d > 0 {
		return int(d)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dimensionProbeTimeout)
	defer cancel()
	if _, err := c.EmbedAll(ctx, []string{dimensionProbeText}); err != nil {
		c.logger.Warn("graphwise: could not determine embedding dimension", "error", err)
		return 0
	}
	return int(c.dimension.Load())
}

// Close shuts the client down, see Shutdown. Calling it again is a no-op.
func (c *Client) Close() error {
	return c.Shutdown(context.Background())
}

// Shutdown rejects new calls, waits up to the configured shutdown timeout
// for in-flight calls to finish, then closes the channel (cancelling any
// call still running) and stops the worker pool without draining it. If ctx
// ends while waiting, the forced path runs at once and ctx.Err() is
// returned. Forced termination after the timeout is not an error.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()

	timer := time.NewTimer(c.cfg.ShutdownTimeout)
	defer timer.Stop()

	var interrupted error
	select {
	case <-drained:
	case <-timer.C:
		c.logger.Warn("graphwise: in-flight calls still running, forcing shutdown", "timeout", c.cfg.ShutdownTimeout)
	case <-ctx.Done():
		interrupted = ctx.Err()
		c.logger.Warn("graphwise: shutdown interrupted, forcing", "error", interrupted)
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Warn("graphwise: closing channel", "error", err)
	}
	c.pool.ShutdownNow()

	c.logger.Info("graphwise client closed")
	return interrupted
}

func (c *Client) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return embedder.ErrClosed
	}
	c.inflight.Add(1)
	return nil
}

// call performs one EmbedSentence RPC. It is cancelled by either the
// caller's ctx or the pool's shutdown.
func (c *Client) call(ctx, poolCtx context.Context, index int, texts []string) batchResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(poolCtx, cancel)
	defer stop()

	if err := ctx.Err(); err != nil {
		return batchResult{err: err}
	}

	metrics.Inc(metrics.GraphwiseBatches)
	resp, err := c.stub.EmbedSentence(ctx, &inferencepb.SentenceRequest{
		ModelName: c.cfg.Model,
		Texts:     texts,
	})
	if err != nil {
		return batchResult{err: err}
	}

	embs := resp.GetEmbeddings()
	if len(embs) != len(texts) {
		return batchResult{err: fmt.Errorf("service returned %d embeddings for %d texts", len(embs), len(texts))}
	}
	vecs := make([][]float32, len(embs))
	for j, e := range embs {
		v := e.GetEmbedding()
		if err := c.checkDimension(len(v)); err != nil {
			return batchResult{err: err}
		}
		vecs[j] = v
	}

	c.logger.Debug("graphwise: batch embedded", "batch", index, "texts", len(texts))
	return batchResult{vectors: vecs}
}

// classify maps a failed batch to the error returned by EmbedAll.
func (c *Client) classify(index int, err error) error {
	metrics.Inc(metrics.GraphwiseFailures)
	if status.Code(err) == codes.Unauthenticated {
		metrics.Inc(metrics.GraphwiseAuthFail)
		return &embedder.AuthenticationError{
			Provider: "graphwise",
			Hint:     "please verify the shared secret",
			Err:      err,
		}
	}
	return fmt.Errorf("graphwise: batch %d: %w", index, err)
}

// checkDimension fixes the client's dimension on first use and rejects
// vectors of any other length afterwards.
func (c *Client) checkDimension(n int) error {
	if n == 0 {
		return fmt.Errorf("service returned an empty embedding")
	}
	if c.dimension.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if d := c.dimension.Load(); d != int64(n) {
		return fmt.Errorf("service returned %d-dimensional embedding, expected %d", n, d)
	}
	return nil
}
