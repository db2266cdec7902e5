package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/remibot/agent/contract"
)

// Names are the natural keys of one receipt's catalog chain.
type Names struct {
	Organization string
	Site         string
	Plot         string
	Destination  string
}

// Refs are the resolved rows for a Names chain.
type Refs struct {
	Organization *Organization
	Site         *Site
	Plot         *Plot
	Destination  *Destination
}

// Resolver materializes catalog rows by natural key. Lookups and inserts for
// the same key from concurrent callers converge on one row because the store
// rejects the second insert and the loser re-reads.
type Resolver struct {
	store Store
}

func NewResolver(store Store) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	return &Resolver{store: store}, nil
}

func (r *Resolver) Organization(ctx context.Context, name string) (*Organization, error) {
	name, err := normalizeName("organization", name)
	if err != nil {
		return nil, err
	}
	return getOrCreate(ctx, "organization", name,
		func(ctx context.Context) (*Organization, error) { return r.store.FindOrganization(ctx, name) },
		r.store.InsertOrganization,
		func() *Organization { return &Organization{ID: uuid.NewString(), Name: name} },
	)
}

func (r *Resolver) Site(ctx context.Context, organizationID string, name string) (*Site, error) {
	name, err := normalizeName("site", name)
	if err != nil {
		return nil, err
	}
	return getOrCreate(ctx, "site", name,
		func(ctx context.Context) (*Site, error) { return r.store.FindSite(ctx, organizationID, name) },
		r.store.InsertSite,
		func() *Site { return &Site{ID: uuid.NewString(), OrganizationID: organizationID, Name: name} },
	)
}

func (r *Resolver) Plot(ctx context.Context, organizationID string, siteID string, name string) (*Plot, error) {
	name, err := normalizeName("plot", name)
	if err != nil {
		return nil, err
	}
	return getOrCreate(ctx, "plot", name,
		func(ctx context.Context) (*Plot, error) { return r.store.FindPlot(ctx, siteID, name) },
		r.store.InsertPlot,
		func() *Plot {
			return &Plot{ID: uuid.NewString(), OrganizationID: organizationID, SiteID: siteID, Name: name}
		},
	)
}

func (r *Resolver) Destination(ctx context.Context, name string) (*Destination, error) {
	name, err := normalizeName("destination", name)
	if err != nil {
		return nil, err
	}
	return getOrCreate(ctx, "destination", name,
		func(ctx context.Context) (*Destination, error) { return r.store.FindDestination(ctx, name) },
		r.store.InsertDestination,
		func() *Destination { return &Destination{ID: uuid.NewString(), Name: name} },
	)
}

// Resolve walks organization, site, plot and then destination.
func (r *Resolver) Resolve(ctx context.Context, names Names) (Refs, error) {
	org, err := r.Organization(ctx, names.Organization)
	if err != nil {
		return Refs{}, err
	}
	site, err := r.Site(ctx, org.ID, names.Site)
	if err != nil {
		return Refs{}, err
	}
	plot, err := r.Plot(ctx, org.ID, site.ID, names.Plot)
	if err != nil {
		return Refs{}, err
	}
	dest, err := r.Destination(ctx, names.Destination)
	if err != nil {
		return Refs{}, err
	}
	return Refs{Organization: org, Site: site, Plot: plot, Destination: dest}, nil
}

func getOrCreate[T any](
	ctx context.Context,
	kind string,
	name string,
	find func(context.Context) (*T, error),
	insert func(context.Context, *T) error,
	build func() *T,
) (*T, error) {
	found, err := find(ctx)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, contractx.ErrNotFound) {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}

	row := build()
	err = insert(ctx, row)
	if err == nil {
		log.Debug().Str("kind", kind).Str("name", name).Msg("catalog row created")
		return row, nil
	}
	if !errors.Is(err, contractx.ErrDuplicateKey) {
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}

	found, err = find(ctx)
	if err != nil {
		return nil, fmt.Errorf("re-read %s %q after duplicate insert: %w", kind, name, err)
	}
	log.Debug().Str("kind", kind).Str("name", name).Msg("catalog insert raced, reusing existing row")
	return found, nil
}

func normalizeName(kind string, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is empty", contractx.ErrValidation, kind)
	}
	return name, nil
}
