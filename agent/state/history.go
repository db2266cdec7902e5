package state

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	contractx "github.com/tanpawarit/remibot/agent/contract"
)

const DefaultHistoryCapacity = 10

var _ contractx.DialogueStore = (*History)(nil)

// History keeps a bounded FIFO of turns per contact. Each contact's slice is
// replaced on write, never mutated, so readers can hold on to what they got.
type History struct {
	turns    *xsync.MapOf[string, []contractx.Turn]
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		turns:    xsync.NewMapOf[string, []contractx.Turn](),
		capacity: capacity,
	}
}

func (h *History) Capacity() int {
	return h.capacity
}

func (h *History) Append(contact string, role contractx.Role, text string) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return
	}
	turn := contractx.Turn{Role: role, Text: text}
	h.turns.Compute(contact, func(old []contractx.Turn, _ bool) ([]contractx.Turn, bool) {
		start := 0
		if over := len(old) + 1 - h.capacity; over > 0 {
			start = over
		}
		next := make([]contractx.Turn, 0, len(old)-start+1)
		next = append(next, old[start:]...)
		next = append(next, turn)
		return next, false
	})
}

// Recent returns up to limit of the newest turns, oldest first. A limit <= 0
// returns everything stored.
func (h *History) Recent(contact string, limit int) []contractx.Turn {
	turns, ok := h.turns.Load(strings.TrimSpace(contact))
	if !ok || len(turns) == 0 {
		return nil
	}
	if limit > 0 && limit < len(turns) {
		turns = turns[len(turns)-limit:]
	}
	out := make([]contractx.Turn, len(turns))
	copy(out, turns)
	return out
}

func (h *History) Clear(contact string) {
	h.turns.Delete(strings.TrimSpace(contact))
}

// Contacts reports how many contacts currently have history.
func (h *History) Contacts() int {
	return h.turns.Size()
}
