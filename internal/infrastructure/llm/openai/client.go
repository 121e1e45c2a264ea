package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
)

const Provider = "openai"

// Client wraps an OpenAI-compatible endpoint for embeddings and chat completions.
type Client struct {
	api        *goopenai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(apiKey, baseURL, genModel, embedModel string, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" && strings.TrimSpace(baseURL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create openai client", errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required"))
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}, nil
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
	req := goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(e.client.embedModel),
		Input: texts,
	}
	if e.dimension > 0 {
		req.Dimensions = e.dimension
	}

	resp, err := resilience.Call(ctx, e.client.executor, "openai.embed", func(ctx context.Context) (goopenai.EmbeddingResponse, error) {
		return e.client.api.CreateEmbeddings(ctx, req)
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("openai embed returned out-of-range index %d", item.Index)
		}
		v := make([]float32, len(item.Embedding))
		for i := range item.Embedding {
			v[i] = float32(item.Embedding[i])
		}
		out[item.Index] = v
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Completer sends the prompt as a single user message; chat responses carry only new text.
type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

func (c *Completer) Complete(ctx context.Context, prompt string, opts domain.SamplingOptions) (string, error) {
	req := c.client.chatRequest(prompt, opts, false)
	resp, err := resilience.Call(ctx, c.client.executor, "openai.chat", func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		return c.client.api.CreateChatCompletion(ctx, req)
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrFormatMismatch, "openai chat", errors.New("response has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Completer) CompleteStream(ctx context.Context, prompt string, opts domain.SamplingOptions) iter.Seq2[string, error] {
	req := c.client.chatRequest(prompt, opts, true)
	return func(yield func(string, error) bool) {
		stream, err := resilience.Call(ctx, c.client.executor, "openai.chat_stream", func(ctx context.Context) (*goopenai.ChatCompletionStream, error) {
			return c.client.api.CreateChatCompletionStream(ctx, req)
		}, classifyOpenAIError)
		if err != nil {
			yield("", wrapTemporaryIfNeeded("openai chat stream", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", wrapTemporaryIfNeeded("openai chat stream", err))
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(resp.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

func (c *Client) chatRequest(prompt string, opts domain.SamplingOptions, stream bool) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model: c.genModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		Stream:      stream,
	}
}

// Errors without an HTTP status are transport failures and are retried.
var openAIRules = resilience.Rules{
	RetryStatus:  resilience.GatewayStatuses,
	StatusOf:     openAIStatus,
	RetryUnknown: true,
}

func openAIStatus(err error) (int, bool) {
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0:
		return apiErr.HTTPStatusCode, true
	case errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0:
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	return openAIRules.Classify(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.Temporary(operation, err, classifyOpenAIError)
}
