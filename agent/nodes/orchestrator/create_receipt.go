package orchestratornode

import (
	"context"
	"fmt"

	"github.com/tanpawarit/remibot/agent/catalog"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/receipt"
	"github.com/tanpawarit/remibot/agent/validate"
)

type CatalogResolver interface {
	Resolve(ctx context.Context, names catalog.Names) (catalog.Refs, error)
}

type ReceiptCreator interface {
	Create(ctx context.Context, draft validate.Draft, refs catalog.Refs, contact string) (*receipt.Receipt, error)
}

// CreateReceipt materializes the catalog chain, stores the receipt and ends
// the conversation. Nothing is cleared when any step fails.
func CreateReceipt(
	ctx context.Context,
	in *GraphState,
	resolver CatalogResolver,
	creator ReceiptCreator,
	history contractx.DialogueStore,
) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}
	draft := in.Validation.Draft
	if !in.Validation.Valid || draft == nil {
		return nil, fmt.Errorf("%w: draft is not valid", contractx.ErrValidation)
	}

	refs, err := resolver.Resolve(ctx, catalog.Names{
		Organization: draft.Organization,
		Site:         draft.Site,
		Plot:         draft.Plot,
		Destination:  draft.Destination,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve catalog: %w", err)
	}

	created, err := creator.Create(ctx, *draft, refs, in.Contact)
	if err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	history.Clear(in.Contact)

	metadata := map[string]any{
		"status":    contractx.StatusCreated,
		"id_remito": created.ID,
	}
	if created.ArtifactURL != "" {
		metadata["qr_url"] = created.ArtifactURL
	}
	if len(in.Validation.Warnings) > 0 {
		metadata["warnings"] = append([]string(nil), in.Validation.Warnings...)
	}

	in.Receipt = created
	in.Reply = contractx.Reply{Text: receipt.Summary(created), Metadata: metadata}
	return in, nil
}
