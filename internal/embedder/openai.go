package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"
)

const (
	openAIDefaultModel = string(openai.SmallEmbedding3)

	// openAIMaxInputs is the per-request input limit of the embeddings API.
	openAIMaxInputs = 2048
)

// openAINativeDims lists the output size of the models when no explicit
// dimensions parameter is sent.
var openAINativeDims = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

// OpenAIEmbedder implements Embedder on top of the go-openai SDK. It also
// works against OpenAI-compatible services when a base URL is given.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int // 0 = model default, not sent on the wire
	logger     *slog.Logger
}

// NewOpenAIEmbedder creates a new OpenAI-based embedder.
//
// model defaults to "text-embedding-3-small" when empty. A positive
// dimensions value is forwarded to the API to shorten the vectors.
func NewOpenAIEmbedder(apiKey, model string, dimensions int, logger *slog.Logger) *OpenAIEmbedder {
	return NewOpenAIEmbedderWithURL("", apiKey, model, dimensions, logger)
}

// NewOpenAIEmbedderWithURL creates an OpenAI embedder talking to baseURL
// (for example "http://localhost:8000/v1"). An empty baseURL selects the
// public OpenAI endpoint.
func NewOpenAIEmbedderWithURL(baseURL, apiKey, model string, dimensions int, logger *slog.Logger) *OpenAIEmbedder {
	if model == "" {
		model = openAIDefaultModel
	}
	if dimensions < 0 {
		dimensions = 0
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Embed returns a vector embedding for the given text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, o, text)
}

// EmbedAll embeds texts in as few API calls as the input limit allows.
func (o *OpenAIEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIMaxInputs {
		end := min(start+openAIMaxInputs, len(texts))
		part, err := o.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, part...)
	}
	return vecs, nil
}

// Dimension returns the configured dimension, or the model's native size.
func (o *OpenAIEmbedder) Dimension() int {
	if o.dimensions > 0 {
		return o.dimensions
	}
	return openAINativeDims[o.model]
}

// Close is a no-op; the SDK holds no resources that need releasing.
func (o *OpenAIEmbedder) Close() error { return nil }

// Model returns the model name sent with each request.
func (o *OpenAIEmbedder) Model() string { return o.model }

func (o *OpenAIEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// Sort by index to guarantee output matches input order.
	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	vecs := make([][]float32, len(resp.Data))
	for i := range resp.Data {
		vecs[i] = resp.Data[i].Embedding
	}

	o.logger.Debug("generated embeddings via OpenAI", "model", o.model, "count", len(vecs))
	return vecs, nil
}

func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusUnauthorized {
		return &AuthenticationError{Provider: "openai", Hint: "please verify the API key", Err: err}
	}
	return fmt.Errorf("openai embedder: %w", err)
}
