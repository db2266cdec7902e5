package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/tanpawarit/remibot/agent/catalog"
	contractx "github.com/tanpawarit/remibot/agent/contract"
)

const defaultMaxParallel = 4

// Context is one organization's catalog as shown to the model. A nil
// Organization means the id did not resolve.
type Context struct {
	Organization *catalog.Organization
	Sites        []catalog.Site
	Plots        []catalog.Plot
}

func (c *Context) Empty() bool {
	return c == nil || c.Organization == nil
}

// Builder loads tenant contexts and caches them per organization id until
// Invalidate or Reset. There is no expiry.
type Builder struct {
	reader      catalog.Reader
	cache       *xsync.MapOf[string, *Context]
	maxParallel int
}

type Option func(*Builder)

func WithMaxParallel(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxParallel = n
		}
	}
}

func NewBuilder(reader catalog.Reader, opts ...Option) (*Builder, error) {
	if reader == nil {
		return nil, errors.New("catalog reader is required")
	}
	b := &Builder{
		reader:      reader,
		cache:       xsync.NewMapOf[string, *Context](),
		maxParallel: defaultMaxParallel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

func (b *Builder) Load(ctx context.Context, organizationID string) (*Context, error) {
	if cached, ok := b.cache.Load(organizationID); ok {
		return cached, nil
	}

	org, err := b.reader.Organization(ctx, organizationID)
	if errors.Is(err, contractx.ErrNotFound) {
		log.Warn().Str("organization_id", organizationID).Msg("tenant organization not found")
		return &Context{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load organization %s: %w", organizationID, err)
	}

	sites, err := b.reader.SitesByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	plots, err := b.reader.PlotsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	tc := &Context{
		Organization: org,
		Sites:        nonNil(sites),
		Plots:        nonNil(plots),
	}
	b.cache.Store(organizationID, tc)
	return tc, nil
}

type loaded struct {
	id  string
	ctx *Context
}

// LoadMany loads several organizations concurrently. The first failure
// cancels the rest.
func (b *Builder) LoadMany(ctx context.Context, organizationIDs []string) (map[string]*Context, error) {
	p := pool.NewWithResults[loaded]().
		WithMaxGoroutines(b.maxParallel).
		WithContext(ctx).
		WithCancelOnError()
	for _, id := range organizationIDs {
		id := id
		p.Go(func(ctx context.Context) (loaded, error) {
			tc, err := b.Load(ctx, id)
			if err != nil {
				return loaded{}, err
			}
			return loaded{id: id, ctx: tc}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Context, len(results))
	for _, r := range results {
		out[r.id] = r.ctx
	}
	return out, nil
}

func (b *Builder) Invalidate(organizationID string) {
	b.cache.Delete(organizationID)
}

func (b *Builder) Reset() {
	b.cache.Clear()
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
