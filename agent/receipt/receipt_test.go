package receipt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanpawarit/remibot/agent/catalog"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/validate"
)

type recordedEvent struct {
	kind   string
	detail string
}

type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeSink) Record(_ context.Context, kind string, detail string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{kind: kind, detail: detail})
}

func (f *fakeSink) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

type failingStore struct {
	err error
}

func (f failingStore) Insert(context.Context, *Receipt) error { return f.err }

func (f failingStore) Get(context.Context, string) (*Receipt, error) {
	return nil, contractx.ErrNotFound
}

func (f failingStore) List(context.Context, Filter) ([]Receipt, error) { return nil, f.err }

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 14, 9, 26, 53, 500, time.FixedZone("UYT", -3*60*60))
	return func() time.Time { return at }
}

func sampleDraft() validate.Draft {
	return validate.Draft{
		Organization: "Agro Sur",
		Site:         "La Esperanza",
		Plot:         "Lote 7",
		DriverName:   "Juan Pérez",
		DriverID:     "12345678",
		TruckPlate:   "ABC 1234",
		WeightTonnes: 25.5,
		Destination:  "Puerto Nueva Palmira",
	}
}

func sampleRefs() catalog.Refs {
	return catalog.Refs{
		Organization: &catalog.Organization{ID: "org-1", Name: "Agro Sur"},
		Site:         &catalog.Site{ID: "site-1", OrganizationID: "org-1", Name: "La Esperanza"},
		Plot:         &catalog.Plot{ID: "plot-1", SiteID: "site-1", Name: "Lote 7"},
		Destination:  &catalog.Destination{ID: "dest-1", Name: "Puerto Nueva Palmira"},
	}
}

func TestKeyUsesUTCSecond(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 14, 9, 26, 53, 999, time.FixedZone("UYT", -3*60*60))
	if got, want := Key("plot-1", at), "plot-1-20250314122653"; got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestCreatePersistsDraftFields(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	sink := &fakeSink{}
	creator, err := NewCreator(store, sink, WithClock(fixedClock()), WithArtifactBaseURL("https://remitos.example.com/"))
	if err != nil {
		t.Fatalf("NewCreator() error = %v", err)
	}

	draft := sampleDraft()
	got, err := creator.Create(context.Background(), draft, sampleRefs(), "59899123456")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if got.ID != "plot-1-20250314122653" {
		t.Fatalf("ID = %q", got.ID)
	}
	if got.OrganizationName != draft.Organization || got.SiteName != draft.Site || got.PlotName != draft.Plot {
		t.Fatalf("names = %q/%q/%q, want draft names", got.OrganizationName, got.SiteName, got.PlotName)
	}
	if got.DriverName != draft.DriverName || got.DriverID != draft.DriverID || got.TruckPlate != draft.TruckPlate {
		t.Fatalf("driver fields = %q/%q/%q", got.DriverName, got.DriverID, got.TruckPlate)
	}
	if got.WeightTonnes != draft.WeightTonnes || got.DestinationName != draft.Destination {
		t.Fatalf("weight/destination = %v/%q", got.WeightTonnes, got.DestinationName)
	}
	if got.TrailerPlate != nil {
		t.Fatalf("TrailerPlate = %v, want nil", *got.TrailerPlate)
	}
	if got.Status != StatusDispatched || !got.Active {
		t.Fatalf("status = %q active = %v", got.Status, got.Active)
	}
	if got.ArtifactURL != "https://remitos.example.com/receipts/plot-1-20250314122653" {
		t.Fatalf("ArtifactURL = %q", got.ArtifactURL)
	}
	if got.RawPayload["contacto"] != "59899123456" {
		t.Fatalf("raw payload contact = %v", got.RawPayload["contacto"])
	}

	stored, err := store.Get(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.PlotID != "plot-1" || stored.DestinationID != "dest-1" {
		t.Fatalf("stored refs = %q/%q", stored.PlotID, stored.DestinationID)
	}
	if sink.count(contractx.EventReceipt) != 1 {
		t.Fatalf("REMITO events = %d, want 1", sink.count(contractx.EventReceipt))
	}
}

func TestCreateDuplicateInSameSecondReturnsExisting(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	creator, err := NewCreator(store, nil, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("NewCreator() error = %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := creator.Create(context.Background(), sampleDraft(), sampleRefs(), "59899123456")
			errs[i] = err
			if r != nil {
				ids[i] = r.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("Create() worker %d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("worker %d id = %q, want %q", i, ids[i], ids[0])
		}
	}
	if store.Len() != 1 {
		t.Fatalf("stored receipts = %d, want 1", store.Len())
	}
}

func TestCreateRejectsIncompleteRefs(t *testing.T) {
	t.Parallel()

	creator, err := NewCreator(NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewCreator() error = %v", err)
	}
	refs := sampleRefs()
	refs.Destination = nil

	_, err = creator.Create(context.Background(), sampleDraft(), refs, "1")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestCreatePropagatesStoreFailure(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	storeErr := errors.New("connection reset")
	creator, err := NewCreator(failingStore{err: storeErr}, sink)
	if err != nil {
		t.Fatalf("NewCreator() error = %v", err)
	}

	_, err = creator.Create(context.Background(), sampleDraft(), sampleRefs(), "1")
	if !errors.Is(err, storeErr) {
		t.Fatalf("Create() error = %v, want %v", err, storeErr)
	}
	if sink.count(contractx.EventError) != 1 {
		t.Fatalf("ERROR events = %d, want 1", sink.count(contractx.EventError))
	}
}

func TestSummaryMentionsTrailerWhenPresent(t *testing.T) {
	t.Parallel()

	trailer := "ABC 9876"
	r := &Receipt{
		ID:              "plot-1-20250314122653",
		SiteName:        "La Esperanza",
		PlotName:        "Lote 7",
		TruckPlate:      "ABC 1234",
		TrailerPlate:    &trailer,
		DriverName:      "Juan Pérez",
		WeightTonnes:    25.5,
		DestinationName: "Puerto",
	}

	got := Summary(r)
	for _, want := range []string{"✅ Remito generado exitosamente", "📋 ID: plot-1-20250314122653", "La Esperanza - Lote 7", "zorra ABC 9876", "25.50 toneladas", "📍 Destino: Puerto"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Summary() missing %q in:\n%s", want, got)
		}
	}
}
