package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/directory"
	"gopkg.in/yaml.v3"
)

// Seed is a catalog bootstrap file. Applying it twice is a no-op.
type Seed struct {
	Organizations []SeedOrganization `yaml:"organizations"`
	Destinations  []string           `yaml:"destinations"`
}

type SeedOrganization struct {
	Name   string      `yaml:"name"`
	Sites  []SeedSite  `yaml:"sites"`
	Phones []SeedPhone `yaml:"phones"`
}

type SeedSite struct {
	Name  string   `yaml:"name"`
	Plots []string `yaml:"plots"`
}

type SeedPhone struct {
	Number string `yaml:"number"`
	Notes  string `yaml:"notes"`
}

// SeedStats counts what Apply touched. Existing rows count as seen, not
// created.
type SeedStats struct {
	Organizations int
	Sites         int
	Plots         int
	Destinations  int
	PhonesAdded   int
	PhonesSeen    int
}

// LoadSeed reads a YAML seed file from path.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	var problems []string
	for i, org := range s.Organizations {
		if strings.TrimSpace(org.Name) == "" {
			problems = append(problems, fmt.Sprintf("organizations[%d]: name is required", i))
		}
		for j, site := range org.Sites {
			if strings.TrimSpace(site.Name) == "" {
				problems = append(problems, fmt.Sprintf("organizations[%d].sites[%d]: name is required", i, j))
			}
		}
		for j, phone := range org.Phones {
			if directory.Normalize(phone.Number) == "" {
				problems = append(problems, fmt.Sprintf("organizations[%d].phones[%d]: %q has no digits", i, j, phone.Number))
			}
		}
	}
	for i, dest := range s.Destinations {
		if strings.TrimSpace(dest) == "" {
			problems = append(problems, fmt.Sprintf("destinations[%d]: name is required", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: seed: %s", contractx.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Apply materializes the seed through the resolver so rows created by
// earlier receipts are reused.
func (s *Seed) Apply(ctx context.Context, store Store) (SeedStats, error) {
	var stats SeedStats
	resolver, err := NewResolver(store)
	if err != nil {
		return stats, err
	}

	for _, o := range s.Organizations {
		org, err := resolver.Organization(ctx, o.Name)
		if err != nil {
			return stats, err
		}
		stats.Organizations++

		for _, st := range o.Sites {
			site, err := resolver.Site(ctx, org.ID, st.Name)
			if err != nil {
				return stats, err
			}
			stats.Sites++
			for _, name := range st.Plots {
				if _, err := resolver.Plot(ctx, org.ID, site.ID, name); err != nil {
					return stats, err
				}
				stats.Plots++
			}
		}

		for _, p := range o.Phones {
			err := store.AddPhone(ctx, &Phone{
				ID:             uuid.NewString(),
				Number:         strings.TrimSpace(p.Number),
				Normalized:     directory.Normalize(p.Number),
				OrganizationID: org.ID,
				Active:         true,
				Notes:          strings.TrimSpace(p.Notes),
			})
			switch {
			case err == nil:
				stats.PhonesAdded++
			case errors.Is(err, contractx.ErrDuplicateKey):
				stats.PhonesSeen++
			default:
				return stats, fmt.Errorf("add phone %s: %w", p.Number, err)
			}
		}
	}

	for _, name := range s.Destinations {
		if _, err := resolver.Destination(ctx, name); err != nil {
			return stats, err
		}
		stats.Destinations++
	}

	log.Info().
		Int("organizations", stats.Organizations).
		Int("plots", stats.Plots).
		Int("phones_added", stats.PhonesAdded).
		Msg("catalog seed applied")
	return stats, nil
}
