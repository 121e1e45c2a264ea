package ollama

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
)

const Provider = "ollama"

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, genModel, embedModel string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

// EnsureModels checks that the configured models are pulled on the server.
func (c *Client) EnsureModels(ctx context.Context, models ...string) error {
	tags, err := resilience.Call(ctx, c.executor, "ollama.tags", c.listModels, classifyOllamaError)
	if err != nil {
		return wrapTemporaryIfNeeded("list ollama models", err)
	}

	var missing []string
	for _, model := range models {
		if model == "" {
			continue
		}
		if !hasModel(tags, model) {
			missing = append(missing, model)
		}
	}
	if len(missing) > 0 {
		return domain.WrapError(domain.ErrSystemNotReady, "ensure ollama models", fmt.Errorf("models not pulled: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func (c *Client) listModels(ctx context.Context) ([]string, error) {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &response, "tags"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(response.Models))
	for _, m := range response.Models {
		out = append(out, m.Name)
	}
	return out, nil
}

// hasModel treats "name" and "name:latest" as the same tag.
func hasModel(tags []string, model string) bool {
	for _, tag := range tags {
		if tag == model || strings.TrimSuffix(tag, ":latest") == model {
			return true
		}
	}
	return false
}

type Embedder struct {
	client    *Client
	dimension int
}

func NewEmbedder(client *Client, dimension int) *Embedder {
	return &Embedder{client: client, dimension: dimension}
}

func (e *Embedder) Identity() domain.EncoderIdentity {
	return domain.EncoderIdentity{Provider: Provider, Model: e.client.embedModel, Dimension: e.dimension}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	vectors, err := resilience.Call(ctx, e.client.executor, "ollama.embed", func(ctx context.Context) ([][]float32, error) {
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
			return nil, err
		}
		return response.Embeddings, nil
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Completer runs /api/generate; the response field holds only the continuation.
type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

func (g *Completer) Complete(ctx context.Context, prompt string, opts domain.SamplingOptions) (string, error) {
	reqBody := g.client.generateRequest(prompt, opts, false)
	text, err := resilience.Call(ctx, g.client.executor, "ollama.generate", func(ctx context.Context) (string, error) {
		var response generateChunk
		if err := g.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return response.Response, nil
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return text, nil
}

// CompleteStream yields continuation fragments from the NDJSON stream.
// Only opening the stream is retried; a failure mid-stream ends the sequence with an error.
func (g *Completer) CompleteStream(ctx context.Context, prompt string, opts domain.SamplingOptions) iter.Seq2[string, error] {
	reqBody := g.client.generateRequest(prompt, opts, true)
	return func(yield func(string, error) bool) {
		resp, err := resilience.Call(ctx, g.client.executor, "ollama.generate_stream", func(ctx context.Context) (*http.Response, error) {
			return g.client.openStream(ctx, "/api/generate", reqBody, "generate stream")
		}, classifyOllamaError)
		if err != nil {
			yield("", wrapTemporaryIfNeeded("ollama generate stream", err))
			return
		}
		defer resp.Body.Close()

		for chunk, err := range decodeStream[generateChunk](resp.Body) {
			if err != nil {
				yield("", wrapTemporaryIfNeeded("ollama generate stream", err))
				return
			}
			if chunk.Error != "" {
				yield("", errors.New("ollama generate stream: "+chunk.Error))
				return
			}
			if chunk.Response != "" && !yield(chunk.Response, nil) {
				return
			}
			if chunk.Done {
				return
			}
		}
	}
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (c *Client) generateRequest(prompt string, opts domain.SamplingOptions, stream bool) map[string]any {
	options := map[string]any{}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.TopK > 0 {
		options["top_k"] = opts.TopK
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	return map[string]any{
		"model":   c.genModel,
		"prompt":  prompt,
		"stream":  stream,
		"options": options,
	}
}
