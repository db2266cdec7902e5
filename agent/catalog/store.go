package catalog

import "context"

// Store is the reference catalog backing. Find methods return an error
// wrapping contract.ErrNotFound on a miss; Insert methods return one wrapping
// contract.ErrDuplicateKey when the natural key already exists.
type Store interface {
	FindOrganization(ctx context.Context, name string) (*Organization, error)
	InsertOrganization(ctx context.Context, org *Organization) error
	FindSite(ctx context.Context, organizationID string, name string) (*Site, error)
	InsertSite(ctx context.Context, site *Site) error
	FindPlot(ctx context.Context, siteID string, name string) (*Plot, error)
	InsertPlot(ctx context.Context, plot *Plot) error
	FindDestination(ctx context.Context, name string) (*Destination, error)
	InsertDestination(ctx context.Context, dest *Destination) error

	Reader
	PhoneStore
}

// Reader is the read side used to build tenant prompt context.
type Reader interface {
	Organization(ctx context.Context, id string) (*Organization, error)
	SitesByOrganization(ctx context.Context, organizationID string) ([]Site, error)
	PlotsByOrganization(ctx context.Context, organizationID string) ([]Plot, error)
}

type PhoneStore interface {
	// OrganizationsByNumber returns the organizations with an active phone
	// row for the digits-only number, ordered by organization id.
	OrganizationsByNumber(ctx context.Context, normalized string) ([]string, error)
	AddPhone(ctx context.Context, phone *Phone) error
}
