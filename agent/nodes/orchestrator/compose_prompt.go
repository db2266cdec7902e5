package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	promptx "github.com/tanpawarit/remibot/agent/prompt"
	"github.com/tanpawarit/remibot/agent/tenant"
)

type TenantLoader interface {
	LoadMany(ctx context.Context, organizationIDs []string) (map[string]*tenant.Context, error)
}

// ComposePrompt resolves the contact's organizations and builds the system
// prompt. Unregistered contacts never trigger a catalog read. Organization ids
// with no catalog row are dropped; when none remain the contact is treated as
// unregistered.
func ComposePrompt(
	ctx context.Context,
	in *GraphState,
	directory contractx.PhoneDirectory,
	tenants TenantLoader,
	composer *promptx.Composer,
) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}

	ids, err := directory.Resolve(ctx, in.Contact)
	if err != nil {
		return nil, fmt.Errorf("resolve organizations: %w", err)
	}

	if len(ids) > 0 {
		contexts, err := tenants.LoadMany(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load tenant contexts: %w", err)
		}
		known := make([]string, 0, len(ids))
		for _, id := range ids {
			if tc := contexts[id]; tc == nil || tc.Organization == nil {
				log.Warn().Str("contact", in.Contact).Str("organization_id", id).Msg("phone points at unknown organization")
				delete(contexts, id)
				continue
			}
			known = append(known, id)
		}
		ids = known
		in.Contexts = contexts
	}
	in.OrganizationIDs = ids

	in.SystemPrompt, in.Mode = composer.Compose(ids, in.Contexts)
	return in, nil
}
