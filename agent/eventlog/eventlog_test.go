package eventlog

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeWriter struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (f *fakeWriter) Write(ctx context.Context, ev *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func TestSinkWritesInBackground(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	s := NewSink(w)

	ctx, cancel := context.WithCancel(context.Background())
	s.Record(ctx, "REMITO", "created", map[string]any{"id_remito": "c-1"})
	cancel()
	s.Close()

	if len(w.events) != 1 {
		t.Fatalf("events = %d, want 1", len(w.events))
	}
	if w.events[0].Kind != "REMITO" || w.events[0].Payload["id_remito"] != "c-1" {
		t.Fatalf("event = %#v", w.events[0])
	}
	if w.events[0].CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set")
	}
}

func TestSinkSwallowsWriteErrors(t *testing.T) {
	t.Parallel()

	s := NewSink(&fakeWriter{err: errors.New("db down")})
	s.Record(context.Background(), "ERROR", "boom", nil)
	s.Close()
}

func TestSinkWithoutWriter(t *testing.T) {
	t.Parallel()

	NewSink(nil).Record(context.Background(), "DEBUG", "noop", nil)
	var nilSink *Sink
	nilSink.Record(context.Background(), "DEBUG", "noop", nil)
}

func TestMemoryWriterKeepsNewest(t *testing.T) {
	t.Parallel()

	w := NewMemoryWriter(3)
	ctx := context.Background()
	for _, kind := range []string{"A", "B", "C", "D"} {
		if err := w.Write(ctx, &Event{Kind: kind}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	got, err := w.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d events, want 3", len(got))
	}
	if got[0].Kind != "D" || got[2].Kind != "B" {
		t.Fatalf("order = %s,%s,%s, want D,C,B", got[0].Kind, got[1].Kind, got[2].Kind)
	}
	if got[0].ID != 4 {
		t.Fatalf("newest ID = %d, want 4", got[0].ID)
	}

	got, err = w.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Kind != "D" {
		t.Fatalf("Recent(1) = %+v", got)
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{0: DefaultRecentLimit, -4: DefaultRecentLimit, 20: 20, 10_000: MaxRecentLimit} {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
