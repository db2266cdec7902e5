package catalog

import (
	"time"

	"github.com/uptrace/bun"
)

type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:o"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Site struct {
	bun.BaseModel `bun:"table:sites,alias:s"`

	ID             string    `bun:"id,pk" json:"id"`
	OrganizationID string    `bun:"organization_id,notnull,unique:sites_org_name" json:"organization_id"`
	Name           string    `bun:"name,notnull,unique:sites_org_name" json:"name"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Plot is a field inside a site. SiteName is filled by catalog reads that join
// the parent site and is never written.
type Plot struct {
	bun.BaseModel `bun:"table:plots,alias:p"`

	ID             string    `bun:"id,pk" json:"id"`
	OrganizationID string    `bun:"organization_id,notnull" json:"organization_id"`
	SiteID         string    `bun:"site_id,notnull,unique:plots_site_name" json:"site_id"`
	Name           string    `bun:"name,notnull,unique:plots_site_name" json:"name"`
	SiteName       string    `bun:"site_name,scanonly" json:"site_name,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Destination struct {
	bun.BaseModel `bun:"table:destinations,alias:d"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Phone authorizes a contact number to act for an organization. Number keeps
// what the operator typed; Normalized is digits only and is what lookups use.
type Phone struct {
	bun.BaseModel `bun:"table:organization_phones,alias:ph"`

	ID             string    `bun:"id,pk" json:"id"`
	Number         string    `bun:"number,notnull" json:"number"`
	Normalized     string    `bun:"normalized,notnull,unique:phones_number_org" json:"normalized"`
	OrganizationID string    `bun:"organization_id,notnull,unique:phones_number_org" json:"organization_id"`
	Active         bool      `bun:"active,notnull,default:true" json:"active"`
	Notes          string    `bun:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Models lists every catalog table in creation order.
func Models() []any {
	return []any{
		(*Organization)(nil),
		(*Site)(nil),
		(*Plot)(nil),
		(*Destination)(nil),
		(*Phone)(nil),
	}
}
