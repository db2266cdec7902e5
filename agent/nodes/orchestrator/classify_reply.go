package orchestratornode

import (
	"github.com/tanpawarit/remibot/agent/extract"
	promptx "github.com/tanpawarit/remibot/agent/prompt"
)

// ClassifyReply is the intent phase. Replies to unregistered contacts are
// always conversational, whatever they contain.
func ClassifyReply(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}
	if in.Mode == promptx.ModeUnregistered {
		in.Intent = extract.Intent{Kind: extract.KindConversation}
		return in, nil
	}
	in.Intent = extract.Classify(in.ModelReply)
	return in, nil
}

func IsDraft(in *GraphState) bool {
	return in != nil && in.Intent.Kind == extract.KindDraft
}
