package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/edgelearn/retrieval-engine/internal/infrastructure/resilience"
)

// Client embeds text into the dense search space and, through a separate
// multimodal model, into the visual space shared with image embeddings.
type Client struct {
	baseURL     string
	embedModel  string
	visualModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, embedModel, visualModel string) *Client {
	return NewWithOptions(baseURL, embedModel, visualModel, Options{})
}

func NewWithOptions(baseURL, embedModel, visualModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		embedModel:  embedModel,
		visualModel: visualModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
	}
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, c.embedModel, texts, "embed")
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, c.embedModel, []string{text}, "embed_query")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) EmbedVisualQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, c.visualModel, []string{text}, "embed_visual_query")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty visual embedding result")
	}
	return vectors[0], nil
}

func (c *Client) embed(ctx context.Context, model string, texts []string, operation string) ([][]float32, error) {
	request := map[string]any{
		"model": model,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/embed", request, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyEmbedError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(operation, err)
	}
	return response.Embeddings, nil
}
