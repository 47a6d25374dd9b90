// Package langchain implements the LLM client boundary over langchaingo
// provider backends. Calls run on their own goroutine: exactly one of the
// success/error callbacks fires exactly once per invocation.
package langchain

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aretw0/loom/pkg/domain"
)

// Factory builds a model backend for a (provider, model) pair. Injectable
// for tests.
type Factory func(provider, model string) (llms.Model, error)

// Client implements domain.LLMClient. Backends are built lazily and cached
// per (provider, model).
type Client struct {
	factory Factory

	mu     sync.Mutex
	models map[string]llms.Model
}

// Option configures the client.
type Option func(*Client)

// WithFactory replaces the default provider factory.
func WithFactory(f Factory) Option {
	return func(c *Client) { c.factory = f }
}

// New creates a client with the default provider factory (openai,
// anthropic, ollama).
func New(opts ...Option) *Client {
	c := &Client{
		factory: defaultFactory,
		models:  make(map[string]llms.Model),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultFactory(provider, model string) (llms.Model, error) {
	switch provider {
	case "openai":
		return openai.New(openai.WithModel(model))
	case "anthropic":
		return anthropic.New(anthropic.WithModel(model))
	case "ollama":
		return ollama.New(ollama.WithModel(model))
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

func (c *Client) model(provider, model string) (llms.Model, error) {
	key := provider + "/" + model
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.models[key]; ok {
		return m, nil
	}
	m, err := c.factory(provider, model)
	if err != nil {
		return nil, err
	}
	c.models[key] = m
	return m, nil
}

// Call satisfies domain.LLMClient.
func (c *Client) Call(ctx context.Context, provider, model string, messages []domain.Message, onSuccess func(string), onError func(error)) {
	go func() {
		backend, err := c.model(provider, model)
		if err != nil {
			onError(err)
			return
		}

		content := make([]llms.MessageContent, 0, len(messages))
		for _, msg := range messages {
			content = append(content, llms.TextParts(roleOf(msg.Role), msg.Content))
		}

		resp, err := backend.GenerateContent(ctx, content)
		if err != nil {
			onError(fmt.Errorf("%s/%s: %w", provider, model, err))
			return
		}
		if len(resp.Choices) == 0 {
			onError(fmt.Errorf("%s/%s: empty response", provider, model))
			return
		}
		onSuccess(resp.Choices[0].Content)
	}()
}

func roleOf(role domain.Role) llms.ChatMessageType {
	switch role {
	case domain.RoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
