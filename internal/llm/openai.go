package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/seenimoa/stockai/internal/metrics"
)

// Default base URLs of the OpenAI-compatible endpoints.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OllamaBaseURL = "http://localhost:11434/v1"
)

// ollamaKey is sent to Ollama, which ignores the Authorization header.
const ollamaKey = "ollama"

// OpenAIProvider implements Provider on any endpoint speaking the OpenAI
// Chat Completions API.
type OpenAIProvider struct {
	name        string
	model       string
	temperature float64
	maxTokens   int
	client      *openai.Client
	metrics     *metrics.Metrics
}

// OpenAIOption configures the provider.
type OpenAIOption func(*openAISettings)

type openAISettings struct {
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(s *openAISettings) { s.httpClient = client }
}

// WithMetrics records every completion's latency.
func WithMetrics(m *metrics.Metrics) OpenAIOption {
	return func(s *openAISettings) { s.metrics = m }
}

// NewOpenAIProvider creates a provider. An empty BaseURL selects the
// default for cfg.Name. Hosted endpoints require an API key.
func NewOpenAIProvider(cfg ProviderConfig, opts ...OpenAIOption) (*OpenAIProvider, error) {
	var s openAISettings
	for _, opt := range opts {
		opt(&s)
	}

	key := cfg.APIKey
	baseURL := cfg.BaseURL
	switch cfg.Name {
	case ProviderOllama:
		if key == "" {
			key = ollamaKey
		}
		if baseURL == "" {
			baseURL = OllamaBaseURL
		}
	case ProviderGroq:
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
	case ProviderOpenAI, "":
		if baseURL == "" {
			baseURL = OpenAIBaseURL
		}
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Name)
	}
	if key == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoAPIKey, cfg.Name)
	}

	oc := openai.DefaultConfig(key)
	oc.BaseURL = strings.TrimRight(baseURL, "/")
	if s.httpClient != nil {
		oc.HTTPClient = s.httpClient
	} else {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		oc.HTTPClient = &http.Client{Timeout: timeout}
	}

	name := cfg.Name
	if name == "" {
		name = ProviderOpenAI
	}
	return &OpenAIProvider{
		name:        name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      openai.NewClientWithConfig(oc),
		metrics:     s.metrics,
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the default model name.
func (p *OpenAIProvider) Model() string { return p.model }

// Ping verifies the endpoint and key by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return mapOpenAIError(err)
	}
	return nil
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	req := p.buildRequest(messages, tools, opts)

	raw, err := p.client.CreateChatCompletion(ctx, req)
	p.metrics.ObserveLLM(start, err)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}
	return p.parseResponse(raw, start), nil
}

// ── Helpers ──

func (p *OpenAIProvider) buildRequest(messages []Message, tools []Tool, opts *ChatOptions) openai.ChatCompletionRequest {
	r := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(p.temperature),
		MaxTokens:   p.maxTokens,
	}
	if len(tools) > 0 {
		r.Tools = toOpenAITools(tools)
	}
	if opts != nil {
		if opts.Model != "" {
			r.Model = opts.Model
		}
		if opts.Temperature > 0 {
			r.Temperature = float32(opts.Temperature)
		}
		if opts.MaxTokens > 0 {
			r.MaxTokens = opts.MaxTokens
		}
		r.Stop = opts.Stop
	}
	return r
}

func (p *OpenAIProvider) parseResponse(raw openai.ChatCompletionResponse, start time.Time) *Response {
	choice := raw.Choices[0]
	r := &Response{
		Content:      choice.Message.Content,
		FinishReason: FinishReason(choice.FinishReason),
		Model:        raw.Model,
		Provider:     p.name,
		Latency:      time.Since(start),
		Usage: Usage{
			PromptTokens:     raw.Usage.PromptTokens,
			CompletionTokens: raw.Usage.CompletionTokens,
			TotalTokens:      raw.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		r.ToolCalls = append(r.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return r
}

// mapOpenAIError folds client errors into the package sentinels while
// keeping the original error in the chain.
func mapOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized, apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrNoAPIKey, err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimit, err)
		case strings.Contains(code, "context_length"):
			return fmt.Errorf("%w: %w", ErrContextLength, err)
		case strings.Contains(code, "model_not_found"), apiErr.HTTPStatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrInvalidModel, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %w", ErrProviderDown, err)
		}
		return fmt.Errorf("llm: %w", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimit, err)
	}
	return fmt.Errorf("%w: %w", ErrProviderDown, err)
}

// ── Conversion Helpers ──

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out[i] = msg
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}
