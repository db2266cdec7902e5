package extract

import (
	"encoding/json"
	"regexp"

	contractx "github.com/tanpawarit/remibot/agent/contract"
)

type Kind string

const (
	KindConversation Kind = "conversation"
	KindDraft        Kind = "draft"
)

// Intent is the classification of one model reply. Payload is set only for
// KindDraft and is still untrusted.
type Intent struct {
	Kind    Kind
	Payload map[string]any
}

// candidatePattern matches brace blocks with at most one nested level.
var candidatePattern = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

// serverAssigned are keys the model must never set.
var serverAssigned = []string{
	"id_remito",
	"qr_url",
	"timestamp_creacion",
	"id_chacra",
	"id_establecimiento",
	"id_empresa",
	"id_destino",
	"estado_remito",
	"activo",
	"raw_payload",
}

// Classify decides whether a reply carries a receipt draft. A candidate counts
// only when it parses as a JSON object holding both the organization and the
// weight keys; braces in ordinary prose are ignored. This is a heuristic: a
// reply quoting such an object verbatim would still classify as a draft.
func Classify(reply string) Intent {
	for _, candidate := range candidatePattern.FindAllString(reply, -1) {
		var payload map[string]any
		if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
			continue
		}
		if _, ok := payload[contractx.FieldOrganization]; !ok {
			continue
		}
		if _, ok := payload[contractx.FieldWeight]; !ok {
			continue
		}
		return Intent{Kind: KindDraft, Payload: payload}
	}
	return Intent{Kind: KindConversation}
}

// Strip returns a copy of payload without server-assigned keys.
func Strip(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, k := range serverAssigned {
		delete(out, k)
	}
	return out
}
