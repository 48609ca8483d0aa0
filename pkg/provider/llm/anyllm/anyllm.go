// Package anyllm adapts github.com/mozilla-ai/any-llm-go to [llm.Provider],
// giving the companion one constructor for every hosted or local backend the
// library supports (Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// OpenAI itself).
//
//	p, err := anyllm.New("anthropic", "claude-sonnet-4-5")
//	p, err := anyllm.New("ollama", "llama3.1", anyllmlib.WithBaseURL("http://localhost:11434"))
//
// Without an explicit anyllmlib.WithAPIKey option each backend reads its
// usual environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, …).
package anyllm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/mindmate-app/mindmate/pkg/provider/llm"
)

// backends maps provider names to their any-llm-go constructors.
var backends = map[string]func(...anyllmlib.Option) (anyllmlib.Provider, error){
	"openai": func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return anyllmoai.New(opts...)
	},
	"anthropic": func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return anthropic.New(opts...)
	},
	"gemini": func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return gemini.New(opts...)
	},
	"ollama": func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return ollama.New(opts...)
	},
	"deepseek": func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return deepseek.New(opts...)
	},
	"mistral": func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return mistral.New(opts...)
	},
	"groq": func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return groq.New(opts...)
	},
}

// Provider wraps one any-llm-go backend as an [llm.Provider].
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a [Provider] for the named backend and model. The name must be
// one of the keys listed by [Supported].
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	construct, ok := backends[strings.ToLower(providerName)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported provider %q; supported: %s",
			providerName, strings.Join(Supported(), ", "))
	}
	backend, err := construct(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Provider{backend: backend, model: model}, nil
}

// Supported lists the accepted provider names in sorted order.
func Supported() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	result := &llm.CompletionResponse{
		Content: resp.Choices[0].Message.ContentString(),
	}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = &req.MaxTokens
	}
	return params
}
