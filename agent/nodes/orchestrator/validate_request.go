package orchestratornode

import (
	"strings"
	"time"

	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/extract"
	promptx "github.com/tanpawarit/remibot/agent/prompt"
	"github.com/tanpawarit/remibot/agent/receipt"
	"github.com/tanpawarit/remibot/agent/tenant"
	"github.com/tanpawarit/remibot/agent/validate"
)

type GraphInput struct {
	MessageID string
	Contact   string
	Text      string
}

// GraphState is threaded through every node of one message's run.
type GraphState struct {
	MessageID string
	Contact   string
	Text      string
	Now       time.Time

	OrganizationIDs []string
	Contexts        map[string]*tenant.Context
	SystemPrompt    string
	Mode            promptx.Mode

	ModelReply string
	Intent     extract.Intent
	Payload    map[string]any
	Validation validate.Result
	Receipt    *receipt.Receipt

	Reply contractx.Reply
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	contact := strings.TrimSpace(in.Contact)
	if contact == "" {
		return nil, contractx.ErrInvalidContact
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, contractx.ErrInvalidMessage
	}

	return &GraphState{
		MessageID: strings.TrimSpace(in.MessageID),
		Contact:   contact,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}

// AppendUserTurn stores the incoming text before anything else happens, so a
// cancel keyword is part of the history it clears.
func AppendUserTurn(in *GraphState, history contractx.DialogueStore) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}
	history.Append(in.Contact, contractx.RoleUser, in.Text)
	return in, nil
}
