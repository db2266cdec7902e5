package contract

import "context"

// PhoneDirectory resolves a contact to the organizations it may act for.
// An empty result means the contact is not registered.
type PhoneDirectory interface {
	Resolve(ctx context.Context, contact string) ([]string, error)
}

type DialogueStore interface {
	Append(contact string, role Role, text string)
	Recent(contact string, limit int) []Turn
	Clear(contact string)
}

// LanguageModel returns raw reply text. Implementations return an error
// wrapping ErrNoCredential when no provider key is configured.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// EventSink is best effort; implementations never report failures to callers.
type EventSink interface {
	Record(ctx context.Context, kind string, detail string, payload map[string]any)
}
