package state

import (
	"fmt"
	"sync"
	"testing"

	contractx "github.com/tanpawarit/remibot/agent/contract"
)

func TestHistoryEvictsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append("598991", contractx.RoleUser, fmt.Sprintf("m%d", i))
	}

	got := h.Recent("598991", 20)
	if len(got) != 3 {
		t.Fatalf("Recent() len = %d, want 3", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].Text != want {
			t.Fatalf("Recent()[%d] = %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestHistoryRecentLimit(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	h.Append("c", contractx.RoleUser, "hola")
	h.Append("c", contractx.RoleAssistant, "buenas")
	h.Append("c", contractx.RoleUser, "quiero un remito")

	got := h.Recent("c", 2)
	if len(got) != 2 {
		t.Fatalf("Recent() len = %d, want 2", len(got))
	}
	if got[0].Role != contractx.RoleAssistant || got[1].Text != "quiero un remito" {
		t.Fatalf("Recent() = %#v", got)
	}
}

func TestHistoryRecentReturnsCopy(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	h.Append("c", contractx.RoleUser, "uno")
	got := h.Recent("c", 0)
	got[0].Text = "mutated"

	if again := h.Recent("c", 0); again[0].Text != "uno" {
		t.Fatalf("stored turn mutated through Recent() result: %q", again[0].Text)
	}
}

func TestHistoryClear(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	h.Append("a", contractx.RoleUser, "x")
	h.Append("b", contractx.RoleUser, "y")
	h.Clear("a")

	if got := h.Recent("a", 20); len(got) != 0 {
		t.Fatalf("Recent(a) after Clear() = %#v, want empty", got)
	}
	if got := h.Recent("b", 20); len(got) != 1 {
		t.Fatalf("Recent(b) len = %d, want 1", len(got))
	}
}

func TestHistoryIgnoresBlankContact(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	h.Append("  ", contractx.RoleUser, "x")
	if h.Contacts() != 0 {
		t.Fatalf("Contacts() = %d, want 0", h.Contacts())
	}
	if h.Capacity() != DefaultHistoryCapacity {
		t.Fatalf("Capacity() = %d, want %d", h.Capacity(), DefaultHistoryCapacity)
	}
}

func TestHistoryConcurrentAppend(t *testing.T) {
	t.Parallel()

	h := NewHistory(50)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Append("shared", contractx.RoleUser, fmt.Sprintf("m%d", i))
			h.Append(fmt.Sprintf("own-%d", i), contractx.RoleUser, "x")
		}(i)
	}
	wg.Wait()

	if got := len(h.Recent("shared", 0)); got != 40 {
		t.Fatalf("Recent(shared) len = %d, want 40", got)
	}
	if h.Contacts() != 41 {
		t.Fatalf("Contacts() = %d, want 41", h.Contacts())
	}
}
