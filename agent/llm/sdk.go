package llm

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	openrouterx "github.com/tanpawarit/remibot/pkg/openrouter"
)

// SDKGateway calls the chat completions endpoint through the openai-go client.
type SDKGateway struct {
	client      *openaisdk.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewSDKGateway(cfg Config) (*SDKGateway, error) {
	client := openrouterx.NewClient(cfg.OpenRouter())
	if client == nil {
		return nil, contractx.ErrNoCredential
	}
	return &SDKGateway{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		maxTokens:   cfg.MaxCompletionToken,
		temperature: cfg.Temperature,
	}, nil
}

func (g *SDKGateway) Complete(ctx context.Context, req contractx.CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.SystemPrompt))
	}
	for _, turn := range req.History {
		if turn.Role == contractx.RoleAssistant {
			msgs = append(msgs, openaisdk.AssistantMessage(turn.Text))
			continue
		}
		msgs = append(msgs, openaisdk.UserMessage(turn.Text))
	}
	msgs = append(msgs, openaisdk.UserMessage(req.UserText))

	params := openaisdk.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    msgs,
		Temperature: openaisdk.Float(float64(g.temperature)),
	}
	if maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(maxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", contractx.ErrModelInvoke)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
