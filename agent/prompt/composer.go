package prompt

import (
	"strings"

	"github.com/tanpawarit/remibot/agent/tenant"
)

type Mode string

const (
	ModeUnregistered Mode = "unregistered"
	ModeSingle       Mode = "single"
	ModeMulti        Mode = "multi"
)

// Composer builds the system prompt for a turn from the contact's
// organizations.
type Composer struct {
	set PromptSet
}

type Option func(*Composer)

// WithBase replaces the embedded registered-contact prompt. Blank values are
// ignored.
func WithBase(base string) Option {
	return func(c *Composer) {
		if trimmed := strings.TrimSpace(base); trimmed != "" {
			c.set.Registered = trimmed
		}
	}
}

func NewComposer(opts ...Option) *Composer {
	c := &Composer{set: LoadPromptSet()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Composer) Base() string {
	return c.set.Registered
}

// Compose never puts tenant data into the unregistered prompt.
func (c *Composer) Compose(organizationIDs []string, contexts map[string]*tenant.Context) (string, Mode) {
	switch len(organizationIDs) {
	case 0:
		return c.set.Unregistered, ModeUnregistered
	case 1:
		return c.set.Registered + tenant.Render(contexts[organizationIDs[0]]), ModeSingle
	default:
		return c.set.Registered + tenant.RenderMulti(organizationIDs, contexts), ModeMulti
	}
}
