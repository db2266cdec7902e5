package receipt

import (
	"strings"

	"github.com/uptrace/bun"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Filter narrows a receipt listing. Zero values match everything. Text
// filters compare case-insensitively against the stored value; date parts
// use the UTC creation time.
type Filter struct {
	Active       *bool
	Destination  string
	Site         string
	Plot         string
	TruckPlate   string
	TrailerPlate string
	DriverID     string
	Year         int
	Month        int
	Day          int
	Limit        int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

func (f Filter) matches(r *Receipt) bool {
	if f.Active != nil && r.Active != *f.Active {
		return false
	}
	text := []struct{ want, got string }{
		{f.Destination, r.DestinationName},
		{f.Site, r.SiteName},
		{f.Plot, r.PlotName},
		{f.TruckPlate, r.TruckPlate},
		{f.DriverID, r.DriverID},
	}
	for _, t := range text {
		if t.want != "" && !strings.EqualFold(strings.TrimSpace(t.want), t.got) {
			return false
		}
	}
	if f.TrailerPlate != "" && (r.TrailerPlate == nil || !strings.EqualFold(strings.TrimSpace(f.TrailerPlate), *r.TrailerPlate)) {
		return false
	}

	at := r.CreatedAt.UTC()
	if f.Year != 0 && at.Year() != f.Year {
		return false
	}
	if f.Month != 0 && int(at.Month()) != f.Month {
		return false
	}
	if f.Day != 0 && at.Day() != f.Day {
		return false
	}
	return true
}

func (f Filter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.Active != nil {
		q = q.Where("r.active = ?", *f.Active)
	}
	text := []struct{ column, want string }{
		{"r.destination_name", f.Destination},
		{"r.site_name", f.Site},
		{"r.plot_name", f.Plot},
		{"r.truck_plate", f.TruckPlate},
		{"r.trailer_plate", f.TrailerPlate},
		{"r.driver_id", f.DriverID},
	}
	for _, t := range text {
		if want := strings.TrimSpace(t.want); want != "" {
			q = q.Where("lower("+t.column+") = lower(?)", want)
		}
	}
	parts := []struct {
		field string
		want  int
	}{
		{"year", f.Year},
		{"month", f.Month},
		{"day", f.Day},
	}
	for _, p := range parts {
		if p.want != 0 {
			q = q.Where("extract("+p.field+" from r.created_at at time zone 'UTC') = ?", p.want)
		}
	}
	return q.Order("r.created_at DESC", "r.id DESC").Limit(f.limit())
}
