package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/remibot/agent/contract"
)

var (
	_ contractx.LanguageModel = (*ChatGateway)(nil)
	_ contractx.LanguageModel = (*SDKGateway)(nil)
	_ contractx.LanguageModel = NoCredential{}
)

// New picks the gateway for cfg. Without an API key it returns NoCredential so
// the pipeline can still answer with an explanation.
func New(ctx context.Context, cfg Config) (contractx.LanguageModel, error) {
	if !cfg.HasCredential() {
		return NoCredential{}, nil
	}

	orCfg := cfg.OpenRouter()
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSDK:
		return NewSDKGateway(cfg)
	case "", DriverEino:
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		return NewChatGateway(ctx, chatModel, cfg.MaxCompletionToken)
	default:
		return nil, fmt.Errorf("%w: unknown llm driver %q", contractx.ErrValidation, cfg.Driver)
	}
}

// NoCredential is the gateway used when no provider key is configured.
type NoCredential struct{}

func (NoCredential) Complete(context.Context, contractx.CompletionRequest) (string, error) {
	return "", contractx.ErrNoCredential
}

// ChatGateway runs a two node eino graph: build the message list, then call
// the chat model.
type ChatGateway struct {
	runner    compose.Runnable[contractx.CompletionRequest, *schema.Message]
	maxTokens int
}

func NewChatGateway(ctx context.Context, chatModel einomodel.BaseChatModel, maxTokens int) (*ChatGateway, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	graph := compose.NewGraph[contractx.CompletionRequest, *schema.Message]()
	if err := graph.AddLambdaNode("build_messages",
		compose.InvokableLambda(func(ctx context.Context, req contractx.CompletionRequest) ([]*schema.Message, error) {
			return BuildMessages(req), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add gateway node build_messages: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add gateway node model: %w", err)
	}

	edges := [][2]string{
		{compose.START, "build_messages"},
		{"build_messages", "model"},
		{"model", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("llm.completion"))
	if err != nil {
		return nil, fmt.Errorf("compile llm graph: %w", err)
	}
	return &ChatGateway{runner: runner, maxTokens: maxTokens}, nil
}

func (g *ChatGateway) Complete(ctx context.Context, req contractx.CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	var opts []compose.Option
	if maxTokens > 0 {
		opts = append(opts, compose.WithChatModelOption(einomodel.WithMaxTokens(maxTokens)))
	}

	msg, err := g.runner.Invoke(ctx, req, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty model response", contractx.ErrModelInvoke)
	}
	return strings.TrimSpace(msg.Content), nil
}

// BuildMessages orders the system prompt, prior turns, then the new user text.
func BuildMessages(req contractx.CompletionRequest) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(req.SystemPrompt))
	}
	for _, turn := range req.History {
		switch turn.Role {
		case contractx.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Text, nil))
		default:
			msgs = append(msgs, schema.UserMessage(turn.Text))
		}
	}
	return append(msgs, schema.UserMessage(req.UserText))
}
