package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/remibot/agent/contract"
)

// FinalizeReply falls back to the raw model reply when no earlier node set
// one.
func FinalizeReply(in *GraphState) (contractx.Reply, error) {
	if in == nil {
		return contractx.Reply{}, errNilState
	}
	if in.Reply.Metadata != nil {
		return in.Reply, nil
	}

	text := strings.TrimSpace(in.ModelReply)
	if text == "" {
		return contractx.Reply{}, fmt.Errorf("%w: no reply produced", contractx.ErrValidation)
	}
	return contractx.Reply{
		Text:     text,
		Metadata: map[string]any{"status": contractx.StatusConversation},
	}, nil
}
