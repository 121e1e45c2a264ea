package bootstrap

import (
	"fmt"
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/llm/openai"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
	synthllm "github.com/kirillkom/complaint-analyst/internal/infrastructure/synth/llm"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/synth/template"
)

const SynthNone = "none"

// providers lazily shares one client per remote backend between the embedder and the synthesizer.
type providers struct {
	cfg      config.Config
	executor *resilience.Executor

	ollama *ollama.Client
	openai *openai.Client
}

func newProviders(cfg config.Config, executor *resilience.Executor) *providers {
	return &providers{cfg: cfg, executor: executor}
}

func (p *providers) ollamaClient() *ollama.Client {
	if p.ollama == nil {
		p.ollama = ollama.New(p.cfg.OllamaURL, p.cfg.OllamaGenModel, p.cfg.EmbedModel, ollama.Options{Executor: p.executor})
	}
	return p.ollama
}

func (p *providers) openaiClient() (*openai.Client, error) {
	if p.openai == nil {
		client, err := openai.New(p.cfg.OpenAIAPIKey, p.cfg.OpenAIBaseURL, p.cfg.OpenAIGenModel, p.cfg.OpenAIEmbedModel, p.executor)
		if err != nil {
			return nil, err
		}
		p.openai = client
	}
	return p.openai, nil
}

// Embedder returns the query and build encoder named by EMBED_PROVIDER.
func (p *providers) Embedder() (ports.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(p.cfg.EmbedProvider)) {
	case ollama.Provider:
		return ollama.NewEmbedder(p.ollamaClient(), p.cfg.EmbedDimension), nil
	case openai.Provider:
		client, err := p.openaiClient()
		if err != nil {
			return nil, err
		}
		return openai.NewEmbedder(client, p.cfg.EmbedDimension), nil
	case hashing.Provider:
		return hashing.New(p.cfg.EmbedDimension), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select embedder", fmt.Errorf("unknown EMBED_PROVIDER %q", p.cfg.EmbedProvider))
	}
}

// Synthesizer returns the answer synthesizer named by SYNTH_PROVIDER, or nil for "none".
// A known provider that cannot be initialized fails with domain.ErrSynthesisUnavailable.
func (p *providers) Synthesizer() (ports.AnswerSynthesizer, error) {
	switch strings.ToLower(strings.TrimSpace(p.cfg.SynthProvider)) {
	case "template", "":
		return template.New(), nil
	case SynthNone:
		return nil, nil
	case ollama.Provider:
		return synthllm.New(ollama.Provider, ollama.NewCompleter(p.ollamaClient()), p.sampling()), nil
	case openai.Provider:
		client, err := p.openaiClient()
		if err != nil {
			return nil, domain.WrapError(domain.ErrSynthesisUnavailable, "init openai synthesizer", err)
		}
		return synthllm.New(openai.Provider, openai.NewCompleter(client), p.sampling()), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select synthesizer", fmt.Errorf("unknown SYNTH_PROVIDER %q", p.cfg.SynthProvider))
	}
}

func (p *providers) sampling() domain.SamplingOptions {
	return domain.SamplingOptions{
		MaxTokens:   p.cfg.GenMaxTokens,
		Temperature: p.cfg.GenTemperature,
		TopK:        p.cfg.GenTopK,
		TopP:        p.cfg.GenTopP,
	}
}

// ollamaModels lists the models the configured providers pull from Ollama.
func (p *providers) ollamaModels() []string {
	var models []string
	if strings.EqualFold(p.cfg.EmbedProvider, ollama.Provider) {
		models = append(models, p.cfg.EmbedModel)
	}
	if strings.EqualFold(p.cfg.SynthProvider, ollama.Provider) {
		models = append(models, p.cfg.OllamaGenModel)
	}
	return models
}
