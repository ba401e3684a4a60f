package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ChatClient sends a single prompt to a language model and returns the completion text
type ChatClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ErrEmptyCompletion is returned when a model answers with no content
var ErrEmptyCompletion = errors.New("empty completion")

// ChatConfig holds chat transport configuration
type ChatConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Supported chat providers
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
)

// NewChatClient creates the chat transport for a provider
func NewChatClient(provider string, config ChatConfig) (ChatClient, error) {
	switch provider {
	case ProviderOpenRouter, "":
		return NewOpenAIChat(config), nil
	case ProviderOpenAI:
		if config.BaseURL == "" {
			config.BaseURL = "https://api.openai.com/v1"
		}
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		return NewOpenAIChat(config), nil
	case ProviderAnthropic:
		return NewAnthropicChat(config), nil
	default:
		return nil, fmt.Errorf("unsupported chat provider %q", provider)
	}
}

// DefaultOpenAIConfig targets OpenRouter's OpenAI-compatible endpoint
func DefaultOpenAIConfig() ChatConfig {
	return ChatConfig{
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "openai/gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   2048,
		Timeout:     60 * time.Second,
	}
}

// DefaultAnthropicConfig targets the Anthropic messages API
func DefaultAnthropicConfig() ChatConfig {
	return ChatConfig{
		BaseURL:     "https://api.anthropic.com/v1",
		Model:       "claude-3-haiku-20240307",
		Temperature: 0.7,
		MaxTokens:   2048,
		Timeout:     60 * time.Second,
	}
}

func normalize(config, defaults ChatConfig) ChatConfig {
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return config
}

// OpenAIChat talks to any OpenAI-compatible chat completions API
type OpenAIChat struct {
	client *openai.Client
	config ChatConfig
}

// NewOpenAIChat creates an OpenAI-compatible chat client
func NewOpenAIChat(config ChatConfig) *OpenAIChat {
	config = normalize(config, DefaultOpenAIConfig())

	cfg := openai.DefaultConfig(config.APIKey)
	cfg.BaseURL = config.BaseURL
	cfg.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIChat{
		client: openai.NewClientWithConfig(cfg),
		config: config,
	}
}

func (c *OpenAIChat) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// AnthropicChat talks to the Anthropic messages API
type AnthropicChat struct {
	config     ChatConfig
	httpClient *http.Client
}

// NewAnthropicChat creates an Anthropic chat client
func NewAnthropicChat(config ChatConfig) *AnthropicChat {
	config = normalize(config, DefaultAnthropicConfig())
	return &AnthropicChat{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type claudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float32   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicChat) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := claudeRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		System:      system,
		Temperature: c.config.Temperature,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}

	var out bytes.Buffer
	for _, block := range cr.Content {
		if block.Type == "" || block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return out.String(), nil
}
