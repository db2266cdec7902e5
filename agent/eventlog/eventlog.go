package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	postgresx "github.com/tanpawarit/remibot/pkg/postgres"
	"github.com/uptrace/bun"
)

const defaultWriteTimeout = 5 * time.Second

type Event struct {
	bun.BaseModel `bun:"table:event_logs,alias:ev"`

	ID        int64          `bun:"id,pk,autoincrement" json:"id"`
	Kind      string         `bun:"kind,notnull" json:"tipo"`
	Detail    string         `bun:"detail" json:"mensaje"`
	Payload   map[string]any `bun:"payload,type:jsonb" json:"payload,omitempty"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"timestamp"`
}

type Writer interface {
	Write(ctx context.Context, ev *Event) error
}

// Reader lists the newest events first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// ClampLimit maps a requested page size onto 1..MaxRecentLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}

type BunWriter struct {
	db bun.IDB
}

func NewBunWriter(db bun.IDB) *BunWriter {
	return &BunWriter{db: db}
}

func (w *BunWriter) Migrate(ctx context.Context) error {
	return postgresx.CreateTables(ctx, w.db, (*Event)(nil))
}

func (w *BunWriter) Write(ctx context.Context, ev *Event) error {
	_, err := w.db.NewInsert().Model(ev).Exec(ctx)
	return err
}

func (w *BunWriter) Recent(ctx context.Context, limit int) ([]Event, error) {
	var events []Event
	err := w.db.NewSelect().Model(&events).
		Order("ev.created_at DESC", "ev.id DESC").
		Limit(ClampLimit(limit)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MemoryWriter keeps the last capacity events in process.
type MemoryWriter struct {
	mu       sync.Mutex
	capacity int
	nextID   int64
	events   []Event
}

func NewMemoryWriter(capacity int) *MemoryWriter {
	if capacity <= 0 {
		capacity = MaxRecentLimit
	}
	return &MemoryWriter{capacity: capacity}
}

func (w *MemoryWriter) Write(_ context.Context, ev *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	ev.ID = w.nextID
	w.events = append(w.events, *ev)
	if over := len(w.events) - w.capacity; over > 0 {
		w.events = append(w.events[:0:0], w.events[over:]...)
	}
	return nil
}

func (w *MemoryWriter) Recent(_ context.Context, limit int) ([]Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	limit = ClampLimit(limit)
	out := make([]Event, 0, min(limit, len(w.events)))
	for i := len(w.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.events[i])
	}
	return out, nil
}

var _ contractx.EventSink = (*Sink)(nil)

// Sink logs every event and, when a Writer is set, persists it in the
// background. Persistence errors are logged and dropped.
type Sink struct {
	writer  Writer
	timeout time.Duration
	now     func() time.Time
	wg      conc.WaitGroup
}

func NewSink(writer Writer) *Sink {
	return &Sink{
		writer:  writer,
		timeout: defaultWriteTimeout,
		now:     time.Now,
	}
}

func (s *Sink) Record(ctx context.Context, kind string, detail string, payload map[string]any) {
	log.Info().Str("kind", kind).Interface("payload", payload).Msg(detail)
	if s == nil || s.writer == nil {
		return
	}

	ev := &Event{
		Kind:      kind,
		Detail:    detail,
		Payload:   payload,
		CreatedAt: s.now().UTC(),
	}
	base := context.WithoutCancel(ctx)
	s.wg.Go(func() {
		writeCtx, cancel := context.WithTimeout(base, s.timeout)
		defer cancel()
		if err := s.writer.Write(writeCtx, ev); err != nil {
			log.Warn().Err(err).Str("kind", kind).Msg("event log write failed")
		}
	})
}

// Close waits for pending writes.
func (s *Sink) Close() {
	s.wg.Wait()
}
