package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	contractx "github.com/tanpawarit/remibot/agent/contract"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the catalog in process. Natural keys are claimed with
// LoadOrStore so concurrent inserts of one key converge like a unique index.
type MemoryStore struct {
	orgs     *xsync.MapOf[string, Organization]
	orgByID  *xsync.MapOf[string, Organization]
	sites    *xsync.MapOf[string, Site]
	plots    *xsync.MapOf[string, Plot]
	siteByID *xsync.MapOf[string, Site]
	dests    *xsync.MapOf[string, Destination]
	phones   *xsync.MapOf[string, Phone]
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:     xsync.NewMapOf[string, Organization](),
		orgByID:  xsync.NewMapOf[string, Organization](),
		sites:    xsync.NewMapOf[string, Site](),
		plots:    xsync.NewMapOf[string, Plot](),
		siteByID: xsync.NewMapOf[string, Site](),
		dests:    xsync.NewMapOf[string, Destination](),
		phones:   xsync.NewMapOf[string, Phone](),
		now:      time.Now,
	}
}

func scoped(parent, name string) string {
	return parent + "\x00" + name
}

func (s *MemoryStore) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = s.now().UTC()
	}
}

func (s *MemoryStore) FindOrganization(_ context.Context, name string) (*Organization, error) {
	org, ok := s.orgs.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: organization %q", contractx.ErrNotFound, name)
	}
	return &org, nil
}

func (s *MemoryStore) InsertOrganization(_ context.Context, org *Organization) error {
	s.stamp(&org.ID, &org.CreatedAt)
	if _, loaded := s.orgs.LoadOrStore(org.Name, *org); loaded {
		return fmt.Errorf("%w: organization %q", contractx.ErrDuplicateKey, org.Name)
	}
	s.orgByID.Store(org.ID, *org)
	return nil
}

func (s *MemoryStore) FindSite(_ context.Context, organizationID string, name string) (*Site, error) {
	site, ok := s.sites.Load(scoped(organizationID, name))
	if !ok {
		return nil, fmt.Errorf("%w: site %q", contractx.ErrNotFound, name)
	}
	return &site, nil
}

func (s *MemoryStore) InsertSite(_ context.Context, site *Site) error {
	s.stamp(&site.ID, &site.CreatedAt)
	if _, loaded := s.sites.LoadOrStore(scoped(site.OrganizationID, site.Name), *site); loaded {
		return fmt.Errorf("%w: site %q", contractx.ErrDuplicateKey, site.Name)
	}
	s.siteByID.Store(site.ID, *site)
	return nil
}

func (s *MemoryStore) FindPlot(_ context.Context, siteID string, name string) (*Plot, error) {
	plot, ok := s.plots.Load(scoped(siteID, name))
	if !ok {
		return nil, fmt.Errorf("%w: plot %q", contractx.ErrNotFound, name)
	}
	return &plot, nil
}

func (s *MemoryStore) InsertPlot(_ context.Context, plot *Plot) error {
	s.stamp(&plot.ID, &plot.CreatedAt)
	stored := *plot
	stored.SiteName = ""
	if _, loaded := s.plots.LoadOrStore(scoped(plot.SiteID, plot.Name), stored); loaded {
		return fmt.Errorf("%w: plot %q", contractx.ErrDuplicateKey, plot.Name)
	}
	return nil
}

func (s *MemoryStore) FindDestination(_ context.Context, name string) (*Destination, error) {
	dest, ok := s.dests.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: destination %q", contractx.ErrNotFound, name)
	}
	return &dest, nil
}

func (s *MemoryStore) InsertDestination(_ context.Context, dest *Destination) error {
	s.stamp(&dest.ID, &dest.CreatedAt)
	if _, loaded := s.dests.LoadOrStore(dest.Name, *dest); loaded {
		return fmt.Errorf("%w: destination %q", contractx.ErrDuplicateKey, dest.Name)
	}
	return nil
}

func (s *MemoryStore) Organization(_ context.Context, id string) (*Organization, error) {
	org, ok := s.orgByID.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: organization %q", contractx.ErrNotFound, id)
	}
	return &org, nil
}

func (s *MemoryStore) SitesByOrganization(_ context.Context, organizationID string) ([]Site, error) {
	var out []Site
	s.sites.Range(func(_ string, site Site) bool {
		if site.OrganizationID == organizationID {
			out = append(out, site)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) PlotsByOrganization(_ context.Context, organizationID string) ([]Plot, error) {
	var out []Plot
	s.plots.Range(func(_ string, plot Plot) bool {
		if plot.OrganizationID == organizationID {
			if site, ok := s.siteByID.Load(plot.SiteID); ok {
				plot.SiteName = site.Name
			}
			out = append(out, plot)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) OrganizationsByNumber(_ context.Context, normalized string) ([]string, error) {
	var ids []string
	s.phones.Range(func(_ string, phone Phone) bool {
		if phone.Active && phone.Normalized == normalized {
			ids = append(ids, phone.OrganizationID)
		}
		return true
	})
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) AddPhone(_ context.Context, phone *Phone) error {
	s.stamp(&phone.ID, &phone.CreatedAt)
	if _, loaded := s.phones.LoadOrStore(scoped(phone.Normalized, phone.OrganizationID), *phone); loaded {
		return fmt.Errorf("%w: phone %q", contractx.ErrDuplicateKey, phone.Normalized)
	}
	return nil
}
