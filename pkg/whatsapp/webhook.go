package whatsapp

import "strings"

// Envelope is the Cloud API webhook body. Only the parts used for inbound
// text messages are decoded.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// TextMessage is one inbound text delivery.
type TextMessage struct {
	ID   string
	From string
	Body string
}

// TextMessages returns the text messages with a non-blank body, in envelope
// order. Status updates and media are skipped.
func (e Envelope) TextMessages() []TextMessage {
	var out []TextMessage
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					continue
				}
				body := strings.TrimSpace(m.Text.Body)
				if body == "" || strings.TrimSpace(m.ID) == "" {
					continue
				}
				out = append(out, TextMessage{ID: m.ID, From: m.From, Body: body})
			}
		}
	}
	return out
}
