package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/remibot/agent/contract"
	postgresx "github.com/tanpawarit/remibot/pkg/postgres"
	"github.com/uptrace/bun"
)

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db bun.IDB
}

func NewPostgresStore(db bun.IDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return postgresx.CreateTables(ctx, s.db, Models()...)
}

func (s *PostgresStore) FindOrganization(ctx context.Context, name string) (*Organization, error) {
	org := new(Organization)
	err := s.db.NewSelect().Model(org).Where("o.name = ?", name).Limit(1).Scan(ctx)
	if err != nil {
		return nil, translate(err, "organization", name)
	}
	return org, nil
}

func (s *PostgresStore) InsertOrganization(ctx context.Context, org *Organization) error {
	_, err := s.db.NewInsert().Model(org).Returning("*").Exec(ctx)
	return translate(err, "organization", org.Name)
}

func (s *PostgresStore) FindSite(ctx context.Context, organizationID string, name string) (*Site, error) {
	site := new(Site)
	err := s.db.NewSelect().Model(site).
		Where("s.organization_id = ?", organizationID).
		Where("s.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "site", name)
	}
	return site, nil
}

func (s *PostgresStore) InsertSite(ctx context.Context, site *Site) error {
	_, err := s.db.NewInsert().Model(site).Returning("*").Exec(ctx)
	return translate(err, "site", site.Name)
}

func (s *PostgresStore) FindPlot(ctx context.Context, siteID string, name string) (*Plot, error) {
	plot := new(Plot)
	err := s.db.NewSelect().Model(plot).
		Where("p.site_id = ?", siteID).
		Where("p.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "plot", name)
	}
	return plot, nil
}

func (s *PostgresStore) InsertPlot(ctx context.Context, plot *Plot) error {
	_, err := s.db.NewInsert().Model(plot).Returning("*").Exec(ctx)
	return translate(err, "plot", plot.Name)
}

func (s *PostgresStore) FindDestination(ctx context.Context, name string) (*Destination, error) {
	dest := new(Destination)
	err := s.db.NewSelect().Model(dest).Where("d.name = ?", name).Limit(1).Scan(ctx)
	if err != nil {
		return nil, translate(err, "destination", name)
	}
	return dest, nil
}

func (s *PostgresStore) InsertDestination(ctx context.Context, dest *Destination) error {
	_, err := s.db.NewInsert().Model(dest).Returning("*").Exec(ctx)
	return translate(err, "destination", dest.Name)
}

func (s *PostgresStore) Organization(ctx context.Context, id string) (*Organization, error) {
	org := new(Organization)
	err := s.db.NewSelect().Model(org).Where("o.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, translate(err, "organization", id)
	}
	return org, nil
}

func (s *PostgresStore) SitesByOrganization(ctx context.Context, organizationID string) ([]Site, error) {
	var sites []Site
	err := s.db.NewSelect().Model(&sites).
		Where("s.organization_id = ?", organizationID).
		Order("s.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites for organization %s: %w", organizationID, err)
	}
	return sites, nil
}

func (s *PostgresStore) PlotsByOrganization(ctx context.Context, organizationID string) ([]Plot, error) {
	var plots []Plot
	err := s.db.NewSelect().Model(&plots).
		ColumnExpr("p.*").
		ColumnExpr("s.name AS site_name").
		Join("JOIN sites AS s ON s.id = p.site_id").
		Where("p.organization_id = ?", organizationID).
		Order("p.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plots for organization %s: %w", organizationID, err)
	}
	return plots, nil
}

func (s *PostgresStore) OrganizationsByNumber(ctx context.Context, normalized string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*Phone)(nil)).
		Column("ph.organization_id").
		Where("ph.normalized = ?", normalized).
		Where("ph.active").
		Order("ph.organization_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("lookup organizations for number: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) AddPhone(ctx context.Context, phone *Phone) error {
	_, err := s.db.NewInsert().Model(phone).Returning("*").Exec(ctx)
	return translate(err, "phone", phone.Normalized)
}

func translate(err error, kind string, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s %q", contractx.ErrNotFound, kind, key)
	case postgresx.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s %q", contractx.ErrDuplicateKey, kind, key)
	default:
		return fmt.Errorf("%s %q: %w", kind, key, err)
	}
}
