package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"tecbrilho.app/erika/core/config"
)

// Meta is the contextual metadata sent alongside the customer message.
type Meta struct {
	LeadID    *int64
	Phone     *string
	Subdomain string
}

// Client is the assistant gateway: one message in, raw assistant text out.
// The raw text may carry a trailing action block; splitting it is the brain
// package's job, not the gateway's.
type Client interface {
	Reply(ctx context.Context, userMessage string, meta Meta) (string, error)
	Model() string
}

type erikaClient struct {
	openai       openai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

func New(cfg config.OpenAIConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4.1-mini"
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &erikaClient{
		openai:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		timeout:      timeout,
	}, nil
}

func (c *erikaClient) Reply(ctx context.Context, userMessage string, meta Meta) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(c.systemPrompt),
		openai.UserMessage(composeUserMessage(userMessage, meta)),
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	slog.DebugContext(ctx, "assistant reply completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *erikaClient) Model() string {
	return c.model
}

// composeUserMessage prefixes the customer text with the conversation context
// the prompt expects (lead and phone, when known).
func composeUserMessage(userMessage string, meta Meta) string {
	var b strings.Builder
	if meta.LeadID != nil {
		fmt.Fprintf(&b, "[lead %d] ", *meta.LeadID)
	}
	if meta.Phone != nil {
		fmt.Fprintf(&b, "[telefone %s] ", *meta.Phone)
	}
	b.WriteString(userMessage)
	return b.String()
}
