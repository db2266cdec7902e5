package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tanpawarit/remibot/agent/catalog"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/validate"
	"github.com/uptrace/bun"
)

const (
	StatusDispatched = "despachado"
	keyLayout        = "20060102150405"
)

// Receipt is a dispatch receipt. Only Status and Active change after
// creation.
type Receipt struct {
	bun.BaseModel `bun:"table:dispatch_receipts,alias:r"`

	ID               string         `bun:"id,pk" json:"id_remito"`
	PlotID           string         `bun:"plot_id,notnull" json:"id_chacra"`
	PlotName         string         `bun:"plot_name,notnull" json:"nombre_chacra"`
	SiteID           string         `bun:"site_id,notnull" json:"id_establecimiento"`
	SiteName         string         `bun:"site_name,notnull" json:"nombre_establecimiento"`
	OrganizationID   string         `bun:"organization_id,notnull" json:"id_empresa"`
	OrganizationName string         `bun:"organization_name,notnull" json:"nombre_empresa"`
	DestinationID    string         `bun:"destination_id,notnull" json:"id_destino"`
	DestinationName  string         `bun:"destination_name,notnull" json:"nombre_destino"`
	DriverName       string         `bun:"driver_name,notnull" json:"nombre_conductor"`
	DriverID         string         `bun:"driver_id,notnull" json:"cedula_conductor"`
	TruckPlate       string         `bun:"truck_plate,notnull" json:"matricula_camion"`
	TrailerPlate     *string        `bun:"trailer_plate" json:"matricula_zorra"`
	WeightTonnes     float64        `bun:"weight_tonnes,notnull" json:"peso_estimado_tn"`
	Status           string         `bun:"status,notnull" json:"estado_remito"`
	Active           bool           `bun:"active,notnull" json:"activo"`
	ArtifactURL      string         `bun:"artifact_url" json:"qr_url,omitempty"`
	Contact          string         `bun:"contact" json:"contacto,omitempty"`
	RawPayload       map[string]any `bun:"raw_payload,type:jsonb" json:"raw_payload,omitempty"`
	CreatedAt        time.Time      `bun:"created_at,notnull" json:"timestamp_creacion"`
}

// Key derives a receipt id from its plot and creation second.
func Key(plotID string, at time.Time) string {
	return plotID + "-" + at.UTC().Format(keyLayout)
}

// Store persists receipts. Insert returns an error wrapping
// contract.ErrDuplicateKey when the id exists; Get wraps contract.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, r *Receipt) error
	Get(ctx context.Context, id string) (*Receipt, error)
	// List returns matching receipts, newest first.
	List(ctx context.Context, filter Filter) ([]Receipt, error)
}

type Creator struct {
	store           Store
	events          contractx.EventSink
	artifactBaseURL string
	now             func() time.Time
}

type Option func(*Creator)

// WithArtifactBaseURL makes every receipt carry <base>/receipts/<id>.
func WithArtifactBaseURL(base string) Option {
	return func(c *Creator) {
		c.artifactBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Creator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCreator(store Store, events contractx.EventSink, opts ...Option) (*Creator, error) {
	if store == nil {
		return nil, errors.New("receipt store is required")
	}
	c := &Creator{store: store, events: events, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Create stores a receipt for a validated draft. A second create for the
// same plot within the same second returns the receipt already stored.
func (c *Creator) Create(ctx context.Context, draft validate.Draft, refs catalog.Refs, contact string) (*Receipt, error) {
	if refs.Organization == nil || refs.Site == nil || refs.Plot == nil || refs.Destination == nil {
		return nil, fmt.Errorf("%w: catalog references are incomplete", contractx.ErrValidation)
	}

	at := c.now().UTC()
	id := Key(refs.Plot.ID, at)

	raw := draft.Fields()
	raw["contacto"] = contact

	r := &Receipt{
		ID:               id,
		PlotID:           refs.Plot.ID,
		PlotName:         draft.Plot,
		SiteID:           refs.Site.ID,
		SiteName:         draft.Site,
		OrganizationID:   refs.Organization.ID,
		OrganizationName: draft.Organization,
		DestinationID:    refs.Destination.ID,
		DestinationName:  draft.Destination,
		DriverName:       draft.DriverName,
		DriverID:         draft.DriverID,
		TruckPlate:       draft.TruckPlate,
		TrailerPlate:     draft.TrailerPlate,
		WeightTonnes:     draft.WeightTonnes,
		Status:           StatusDispatched,
		Active:           true,
		Contact:          contact,
		RawPayload:       raw,
		CreatedAt:        at,
	}
	if c.artifactBaseURL != "" {
		r.ArtifactURL = c.artifactBaseURL + "/receipts/" + id
	}

	c.record(ctx, contractx.EventDebug, "creating receipt "+id, map[string]any{"id_chacra": refs.Plot.ID})

	err := c.store.Insert(ctx, r)
	switch {
	case err == nil:
	case errors.Is(err, contractx.ErrDuplicateKey):
		existing, getErr := c.store.Get(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("re-read duplicate receipt %s: %w", id, getErr)
		}
		c.record(ctx, contractx.EventDebug, "receipt "+id+" already existed", map[string]any{"contacto": contact})
		return existing, nil
	default:
		c.record(ctx, contractx.EventError, "receipt insert failed: "+err.Error(), map[string]any{"contacto": contact})
		return nil, fmt.Errorf("insert receipt %s: %w", id, err)
	}

	c.record(ctx, contractx.EventReceipt, "receipt "+id+" created", map[string]any{
		"id_remito":       id,
		"contacto":        contact,
		"empresa":         r.OrganizationName,
		"establecimiento": r.SiteName,
		"chacra":          r.PlotName,
		"conductor":       r.DriverName,
	})
	return r, nil
}

func (c *Creator) Get(ctx context.Context, id string) (*Receipt, error) {
	return c.store.Get(ctx, id)
}

func (c *Creator) List(ctx context.Context, filter Filter) ([]Receipt, error) {
	return c.store.List(ctx, filter)
}

func (c *Creator) record(ctx context.Context, kind, detail string, payload map[string]any) {
	if c.events != nil {
		c.events.Record(ctx, kind, detail, payload)
	}
}

// Summary is the confirmation text sent to the contact.
func Summary(r *Receipt) string {
	var b strings.Builder
	b.WriteString("✅ Remito generado exitosamente\n\n")
	fmt.Fprintf(&b, "📋 ID: %s\n", r.ID)
	fmt.Fprintf(&b, "🏢 %s - %s\n", r.SiteName, r.PlotName)
	fmt.Fprintf(&b, "🚛 %s", r.TruckPlate)
	if r.TrailerPlate != nil {
		fmt.Fprintf(&b, " / zorra %s", *r.TrailerPlate)
	}
	fmt.Fprintf(&b, "\n👤 %s\n", r.DriverName)
	fmt.Fprintf(&b, "⚖️ %.2f toneladas\n", r.WeightTonnes)
	fmt.Fprintf(&b, "📍 Destino: %s", r.DestinationName)
	return b.String()
}
