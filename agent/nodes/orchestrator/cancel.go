package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/remibot/agent/contract"
)

const CancelReply = "Proceso cancelado. Escribe 'crear remito' cuando quieras empezar de nuevo."

var errNilState = fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)

var cancelKeywords = map[string]struct{}{
	"cancelar":         {},
	"cancel":           {},
	"salir":            {},
	"stop":             {},
	"terminar":         {},
	"cerrar":           {},
	"abandonar":        {},
	"reiniciar":        {},
	"empezar de nuevo": {},
	"nuevo remito":     {},
}

// IsCancelKeyword matches the whole message, not a substring of it.
func IsCancelKeyword(text string) bool {
	_, ok := cancelKeywords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func CancelConversation(in *GraphState, history contractx.DialogueStore) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}
	history.Clear(in.Contact)
	in.Reply = contractx.Reply{
		Text:     CancelReply,
		Metadata: map[string]any{"status": contractx.StatusCancelled},
	}
	return in, nil
}
