package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/remibot/agent/contract"
)

func CallModel(
	ctx context.Context,
	in *GraphState,
	model contractx.LanguageModel,
	history contractx.DialogueStore,
	historyLimit int,
	maxTokens int,
) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}

	turns := history.Recent(in.Contact, historyLimit)
	// The incoming text was appended already and goes out as the user message.
	if n := len(turns); n > 0 && turns[n-1].Role == contractx.RoleUser && turns[n-1].Text == in.Text {
		turns = turns[:n-1]
	}

	reply, err := model.Complete(ctx, contractx.CompletionRequest{
		SystemPrompt: in.SystemPrompt,
		UserText:     in.Text,
		History:      turns,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return nil, err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, fmt.Errorf("%w: model returned empty reply", contractx.ErrModelInvoke)
	}

	in.ModelReply = reply
	history.Append(in.Contact, contractx.RoleAssistant, reply)
	return in, nil
}
