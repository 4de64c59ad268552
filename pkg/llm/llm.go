// Package llm wraps the OpenAI chat-completions client used as the
// reasoning service.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
)

// Config is the reasoning-service configuration, loaded with the OPENAI
// prefix.
type Config struct {
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o"`
	MaxCompletionToken int64         `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"45s"`
}

// Client is a thin, timeout-bounded wrapper over the OpenAI SDK.
type Client struct {
	api         *openaisdk.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
}

// NewClient builds a Client from config. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai api key is required", contract.ErrInvalidArgument)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	api := openaisdk.NewClient(opts...)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		api:         &api,
		model:       strings.TrimSpace(cfg.Model),
		maxTokens:   cfg.MaxCompletionToken,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

// CreateTurn requests one model turn against the given transcript with the
// full tool catalog offered. The call is bounded by the configured timeout.
func (c *Client) CreateTurn(
	ctx context.Context,
	messages []openaisdk.ChatCompletionMessageParamUnion,
	tools []openaisdk.ChatCompletionToolParam,
) (*openaisdk.ChatCompletion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openaisdk.ChatCompletionNewParams{
		Model:               openaisdk.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openaisdk.Int(c.maxTokens),
		Temperature:         openaisdk.Float(c.temperature),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %v", contract.ErrUpstreamUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: chat completion returned no choices", contract.ErrUpstreamUnavailable)
	}
	return completion, nil
}
