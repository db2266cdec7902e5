package directory

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/remibot/agent/contract"
)

// DefaultCountryCode is Uruguay's calling code.
const DefaultCountryCode = "598"

// Lookup finds organizations for a digits-only number.
type Lookup interface {
	OrganizationsByNumber(ctx context.Context, normalized string) ([]string, error)
}

var (
	_ contractx.PhoneDirectory = (*Directory)(nil)
	_ contractx.PhoneDirectory = (*Cached)(nil)
)

type Directory struct {
	lookup      Lookup
	countryCode string
}

type Option func(*Directory)

func WithCountryCode(code string) Option {
	return func(d *Directory) {
		if code = Normalize(code); code != "" {
			d.countryCode = code
		}
	}
}

func New(lookup Lookup, opts ...Option) (*Directory, error) {
	if lookup == nil {
		return nil, errors.New("phone lookup is required")
	}
	d := &Directory{lookup: lookup, countryCode: DefaultCountryCode}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Normalize keeps only the digits of a phone number.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Candidates lists the forms tried for a number, in order: as sent, without
// the country code, and with it prepended.
func (d *Directory) Candidates(raw string) []string {
	digits := Normalize(raw)
	if digits == "" {
		return nil
	}
	out := []string{digits}
	local := digits
	if strings.HasPrefix(digits, d.countryCode) && len(digits) > len(d.countryCode) {
		local = strings.TrimPrefix(digits, d.countryCode)
		out = append(out, local)
	}
	if prefixed := d.countryCode + local; prefixed != digits {
		out = append(out, prefixed)
	}
	return out
}

func (d *Directory) Resolve(ctx context.Context, contact string) ([]string, error) {
	for _, candidate := range d.Candidates(contact) {
		ids, err := d.lookup.OrganizationsByNumber(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	return []string{}, nil
}

// Cached memoizes non-empty resolutions per contact until invalidated. Empty
// results are never cached so a newly registered number works right away.
type Cached struct {
	next  contractx.PhoneDirectory
	cache *xsync.MapOf[string, []string]
}

func NewCached(next contractx.PhoneDirectory) *Cached {
	return &Cached{
		next:  next,
		cache: xsync.NewMapOf[string, []string](),
	}
}

func (c *Cached) Resolve(ctx context.Context, contact string) ([]string, error) {
	if ids, ok := c.cache.Load(contact); ok {
		return append([]string(nil), ids...), nil
	}
	ids, err := c.next.Resolve(ctx, contact)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		c.cache.Store(contact, append([]string(nil), ids...))
		log.Debug().Str("contact", contact).Int("org_count", len(ids)).Msg("phone directory cached")
	}
	return ids, nil
}

func (c *Cached) Invalidate(contact string) {
	c.cache.Delete(contact)
}

func (c *Cached) Reset() {
	c.cache.Clear()
}
