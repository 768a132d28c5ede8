package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

type LLMConfig struct {
	Provider   Provider
	APIKey     string
	BaseURL    string
	// APIVersion is only sent to Azure OpenAI.
	APIVersion string
}

// Client is a wrapper around the openai client that speaks the Completer
// contract. Any OpenAI-compatible endpoint works through BaseURL.
type Client struct {
	client openai.Client
}

var _ Completer = (*Client)(nil)

func (config *LLMConfig) NewLLMClient() *Client {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &Client{client: openai.NewClient(opts...)}
}

// NewAzureClient talks to an Azure OpenAI resource at BaseURL. The request
// model names the deployment.
func (config *LLMConfig) NewAzureClient() *Client {
	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}
	return &Client{client: openai.NewClient(
		azure.WithEndpoint(config.BaseURL, apiVersion),
		azure.WithAPIKey(config.APIKey),
	)}
}

func injectIdentifiers(ctx context.Context, opts []option.RequestOption) []option.RequestOption {
	if turnID, ok := ctx.Value(TurnIDKey).(string); ok {
		opts = append(opts, option.WithHeader("X-Turn-ID", turnID))
	}
	return opts
}

func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    toOpenAIMessages(req.Messages),
		Model:       req.Model,
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.User != "" {
		params.User = openai.String(req.User)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, injectIdentifiers(ctx, nil)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrCompletion)
	}
	choice := completion.Choices[0]
	return &Completion{
		Model: completion.Model,
		Message: Message{
			Role:    Role(choice.Message.Role),
			Content: choice.Message.Content,
		},
		Usage: Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
