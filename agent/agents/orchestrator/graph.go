package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	nodex "github.com/tanpawarit/remibot/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, contractx.Reply], error) {
	graph := compose.NewGraph[nodex.GraphInput, contractx.Reply]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("append_user_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AppendUserTurn(in, o.deps.History)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node append_user_turn: %w", err)
	}

	if err := graph.AddLambdaNode("cancel_conversation",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CancelConversation(in, o.deps.History)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node cancel_conversation: %w", err)
	}

	if err := graph.AddLambdaNode("compose_prompt",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			st, err := nodex.ComposePrompt(ctx, in, o.deps.Directory, o.deps.Tenants, o.deps.Composer)
			if err == nil {
				o.deps.Events.Record(ctx, contractx.EventDebug, "prompt mode "+string(st.Mode), map[string]any{
					"contacto": st.Contact,
					"empresas": st.OrganizationIDs,
				})
			}
			return st, err
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose_prompt: %w", err)
	}

	if err := graph.AddLambdaNode("call_model",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CallModel(ctx, in, o.deps.Model, o.deps.History, o.historyLimit, o.maxTokens)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node call_model: %w", err)
	}

	if err := graph.AddLambdaNode("classify_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ClassifyReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify_reply: %w", err)
	}

	if err := graph.AddLambdaNode("extract_draft",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExtractDraft(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node extract_draft: %w", err)
	}

	if err := graph.AddLambdaNode("validate_draft",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateDraft(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_draft: %w", err)
	}

	if err := graph.AddLambdaNode("reject_draft",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RejectDraft(in, o.deps.History)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node reject_draft: %w", err)
	}

	if err := graph.AddLambdaNode("create_receipt",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CreateReceipt(ctx, in, o.deps.Resolver, o.deps.Receipts, o.deps.History)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node create_receipt: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.Reply, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	branches := []struct {
		from   string
		branch *compose.GraphBranch
	}{
		{"append_user_turn", compose.NewGraphBranch(
			func(ctx context.Context, in *nodex.GraphState) (string, error) {
				if in != nil && nodex.IsCancelKeyword(in.Text) {
					return "cancel_conversation", nil
				}
				return "compose_prompt", nil
			},
			map[string]bool{"cancel_conversation": true, "compose_prompt": true},
		)},
		{"classify_reply", compose.NewGraphBranch(
			func(ctx context.Context, in *nodex.GraphState) (string, error) {
				if nodex.IsDraft(in) {
					return "extract_draft", nil
				}
				return "finalize_reply", nil
			},
			map[string]bool{"extract_draft": true, "finalize_reply": true},
		)},
		{"validate_draft", compose.NewGraphBranch(
			func(ctx context.Context, in *nodex.GraphState) (string, error) {
				if in != nil && in.Validation.Valid {
					return "create_receipt", nil
				}
				return "reject_draft", nil
			},
			map[string]bool{"create_receipt": true, "reject_draft": true},
		)},
	}
	for _, b := range branches {
		if err := graph.AddBranch(b.from, b.branch); err != nil {
			return nil, fmt.Errorf("add branch after %s: %w", b.from, err)
		}
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "append_user_turn"},
		{"cancel_conversation", "finalize_reply"},
		{"compose_prompt", "call_model"},
		{"call_model", "classify_reply"},
		{"extract_draft", "validate_draft"},
		{"reject_draft", "finalize_reply"},
		{"create_receipt", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
