package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/registered.txt
	registeredRaw string

	//go:embed template/unregistered.txt
	unregisteredRaw string
)

// PromptSet holds the embedded system prompts.
type PromptSet struct {
	Registered   string
	Unregistered string
}

// LoadPromptSet returns the embedded prompts trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Registered:   strings.TrimSpace(registeredRaw),
		Unregistered: strings.TrimSpace(unregisteredRaw),
	}
}
