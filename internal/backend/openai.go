package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/LiboWorks/bitrag/internal/config"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// OpenAIName is the Name() of the remote backend.
const OpenAIName = "openai"

// OpenAIBackend implements Backend against an OpenAI-compatible chat
// completions endpoint.
type OpenAIBackend struct {
	client  *openai.Client
	model   string
	baseURL string
	log     logging.Logger
}

// OpenAIConfig holds configuration for the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Optional: for Azure or compatible APIs
	Model   string
	Logger  logging.Logger
}

// NewOpenAIBackend creates a new OpenAI backend. Empty fields fall back to
// the global configuration.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	globalCfg := config.Get()

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = globalCfg.OpenAIAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not provided (set OPENAI_API_KEY or pass in config)", inference.ErrBackendInit)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = globalCfg.OpenAIBaseURL
	}
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	model := cfg.Model
	if model == "" {
		model = globalCfg.OpenAIModel
	}

	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		baseURL: clientCfg.BaseURL,
		log:     logging.OrDiscard(cfg.Logger).With("backend", OpenAIName),
	}, nil
}

func (b *OpenAIBackend) request(messages []openai.ChatCompletionMessage, maxTokens int, cfg inference.SamplerConfig) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		MaxTokens:   maxTokensOrDefault(maxTokens),
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
	if cfg.Seed != 0 {
		seed := int(cfg.Seed & 0x7fffffff)
		req.Seed = &seed
	}
	return req
}

func userMessage(prompt string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}}
}

// Generate implements Backend.
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return b.complete(ctx, b.request(userMessage(prompt), maxTokens, cfg))
}

func (b *OpenAIBackend) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", b.wrap(ctx, "openai completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", inference.ErrDecode)
	}

	return resp.Choices[0].Message.Content, nil
}

// GenerateStreaming implements Backend using server-sent chunks.
func (b *OpenAIBackend) GenerateStreaming(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error) {
	return b.stream(ctx, b.request(userMessage(prompt), maxTokens, cfg), onToken)
}

// ChatStreaming is Chat with streamed output.
func (b *OpenAIBackend) ChatStreaming(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error) {
	return b.stream(ctx, b.request(chatMessages(system, user), maxTokens, cfg), onToken)
}

func (b *OpenAIBackend) stream(ctx context.Context, req openai.ChatCompletionRequest, onToken inference.TokenFunc) (string, error) {
	req.Stream = true
	stream, err := b.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", b.wrap(ctx, "openai stream failed", err)
	}
	defer stream.Close()

	var out []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return string(out), nil
		}
		if err != nil {
			return string(out), b.wrap(ctx, "openai stream failed", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		piece := chunk.Choices[0].Delta.Content
		if piece == "" {
			continue
		}
		out = append(out, piece...)
		if onToken != nil {
			if err := onToken(piece); err != nil {
				if errors.Is(err, inference.ErrStopGeneration) {
					return string(out), nil
				}
				return string(out), err
			}
		}
	}
}

// Chat sends the system and user messages as separate chat turns.
func (b *OpenAIBackend) Chat(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return b.complete(ctx, b.request(chatMessages(system, user), maxTokens, cfg))
}

func chatMessages(system, user string) []openai.ChatCompletionMessage {
	if system == "" {
		system = inference.DefaultSystemPrompt
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
}

func (b *OpenAIBackend) wrap(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", inference.ErrInterrupted, ctxErr)
	}
	b.log.Warn(msg, "error", err)
	return fmt.Errorf("%w: %s: %w", inference.ErrIO, msg, err)
}

// Name implements Backend.
func (b *OpenAIBackend) Name() string {
	return OpenAIName
}

// IsReady implements Backend.
func (b *OpenAIBackend) IsReady() bool { return b.client != nil }

// Version implements Backend.
func (b *OpenAIBackend) Version() (string, error) {
	return fmt.Sprintf("OpenAI-compatible (%s @ %s)", b.model, b.baseURL), nil
}

// Close implements Backend.
func (b *OpenAIBackend) Close() error {
	return nil
}

var _ ChatStreamer = (*OpenAIBackend)(nil)
