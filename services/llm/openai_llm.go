package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
)

// Providers served through the OpenAI-compatible client.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderGemini:    "gemini-2.0-flash",
}

// geminiOpenAIBaseURL is Gemini's OpenAI-compatible endpoint.
const geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

const defaultSystemPrompt = "You are an expert script analyst. Answer precisely and in the requested format."

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	Provider string
	APIKey   string
	Model    string

	// BaseURL overrides the provider's endpoint.
	BaseURL string
}

type OpenAIClient struct {
	client   *openai.Client
	model    string
	provider string
	logger   *slog.Logger
}

// NewOpenAIClient builds a client for the configured provider.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}

	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case ProviderAnthropic:
		clientCfg = openai.DefaultAnthropicConfig(cfg.APIKey, cfg.BaseURL)
	case ProviderGemini:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = geminiOpenAIBaseURL
	case ProviderOpenAI:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
		logger.Warn("model not set, using provider default",
			slog.String("provider", cfg.Provider),
			slog.String("model", cfg.Model),
		)
	}

	logger.Info("Initializing OpenAI-compatible client",
		slog.String("provider", cfg.Provider),
		slog.String("model", cfg.Model),
	)
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   logger,
	}, nil
}

// OpenAIConfigFromEnv reads OPENAI_API_KEY and OPENAI_MODEL, falling back
// to the mounted secret file for the key.
func OpenAIConfigFromEnv() OpenAIConfig {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		if b, err := os.ReadFile("/run/secrets/openai_api_key"); err == nil {
			apiKey = strings.TrimSpace(string(b))
		}
	}
	return OpenAIConfig{
		Provider: ProviderOpenAI,
		APIKey:   apiKey,
		Model:    os.Getenv("OPENAI_MODEL"),
		BaseURL:  os.Getenv("OPENAI_BASE_URL"),
	}
}

// Name identifies the backend and model, e.g. "openai/gpt-4o-mini".
func (o *OpenAIClient) Name() string {
	return o.provider + "/" + o.model
}

// Generate implements the LLMClient interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "screenplay.llm", "OpenAIClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", o.provider),
		attribute.String("llm.model", o.model),
	)

	system := params.SystemInstruction
	if system == "" {
		system = defaultSystemPrompt
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		o.logger.Error("OpenAI API call failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("%s API call failed: %w", o.provider, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		telemetry.RecordError(span, ErrEmptyResponse)
		return "", fmt.Errorf("%s: %w", o.provider, ErrEmptyResponse)
	}
	o.logger.Debug("Received response", slog.String("finish_reason", string(resp.Choices[0].FinishReason)))
	telemetry.SetSpanOK(span)
	return resp.Choices[0].Message.Content, nil
}
