package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/extract"
	"github.com/tanpawarit/remibot/agent/validate"
)

// ExtractDraft is the extraction phase: it drops server-assigned keys from
// the classified payload.
func ExtractDraft(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}
	if in.Intent.Kind != extract.KindDraft || in.Intent.Payload == nil {
		return nil, fmt.Errorf("%w: reply was not classified as a draft", contractx.ErrValidation)
	}
	in.Payload = extract.Strip(in.Intent.Payload)
	return in, nil
}

func ValidateDraft(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}
	in.Validation = validate.Record(in.Payload)
	return in, nil
}

// RejectDraft answers with every validation error and keeps the
// conversation open.
func RejectDraft(in *GraphState, history contractx.DialogueStore) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}
	msg := in.Validation.Message()
	history.Append(in.Contact, contractx.RoleAssistant, msg)

	metadata := map[string]any{
		"status": contractx.StatusConversation,
		"errors": append([]string(nil), in.Validation.Errors...),
	}
	if len(in.Validation.Warnings) > 0 {
		metadata["warnings"] = append([]string(nil), in.Validation.Warnings...)
	}
	in.Reply = contractx.Reply{Text: msg, Metadata: metadata}
	return in, nil
}
