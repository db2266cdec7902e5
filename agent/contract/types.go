package contract

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged entry in a contact's dialogue history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type Status string

const (
	StatusConversation Status = "conversation"
	StatusCreated      Status = "created"
	StatusCancelled    Status = "cancelled"
	StatusError        Status = "error"
)

// InboundMessage is a single text delivery from the messaging transport.
type InboundMessage struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Body      string `json:"body"`
}

// Reply is what the pipeline hands back to the transport. Metadata always
// carries a "status" key holding a Status value.
type Reply struct {
	Text     string         `json:"reply"`
	Metadata map[string]any `json:"metadata"`
}

func (r Reply) Status() Status {
	if r.Metadata == nil {
		return ""
	}
	switch v := r.Metadata["status"].(type) {
	case Status:
		return v
	case string:
		return Status(v)
	}
	return ""
}

type CompletionRequest struct {
	SystemPrompt string
	UserText     string
	History      []Turn
	MaxTokens    int
}

// Event kinds written to the event sink.
const (
	EventIncoming = "MENSAJE_ENTRANTE"
	EventOutgoing = "MENSAJE_SALIENTE"
	EventReceipt  = "REMITO"
	EventError    = "ERROR"
	EventDebug    = "DEBUG"
)
