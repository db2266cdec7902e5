package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/remibot/agent/agents/orchestrator"
	"github.com/tanpawarit/remibot/agent/catalog"
	"github.com/tanpawarit/remibot/agent/directory"
	"github.com/tanpawarit/remibot/agent/eventlog"
	"github.com/tanpawarit/remibot/agent/llm"
	promptx "github.com/tanpawarit/remibot/agent/prompt"
	"github.com/tanpawarit/remibot/agent/receipt"
	statex "github.com/tanpawarit/remibot/agent/state"
	"github.com/tanpawarit/remibot/agent/tenant"
	postgresx "github.com/tanpawarit/remibot/pkg/postgres"
	"github.com/uptrace/bun"
)

// app is the wired pipeline shared by serve and chat.
type app struct {
	db       *bun.DB
	catalog  catalog.Store
	receipts receipt.Store
	creator  *receipt.Creator
	events   *eventlog.Sink
	eventLog eventlog.Reader
	phones   *directory.Cached
	tenants  *tenant.Builder
	orch     *orchestrator.Orchestrator
}

// newApp wires the pipeline over Postgres, or over in-memory stores when
// memory is set.
func newApp(ctx context.Context, s *settings, memory bool) (*app, error) {
	a := &app{}

	var writer eventlog.Writer
	if memory {
		a.catalog = catalog.NewMemoryStore()
		a.receipts = receipt.NewMemoryStore()
		mem := eventlog.NewMemoryWriter(0)
		writer, a.eventLog = mem, mem
	} else {
		db, err := openDB(ctx, s)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.catalog = catalog.NewPostgresStore(db)
		a.receipts = receipt.NewPostgresStore(db)
		bunWriter := eventlog.NewBunWriter(db)
		writer, a.eventLog = bunWriter, bunWriter
	}
	a.events = eventlog.NewSink(writer)

	dir, err := directory.New(a.catalog, directory.WithCountryCode(s.App.CountryCode))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.phones = directory.NewCached(dir)

	a.tenants, err = tenant.NewBuilder(a.catalog, tenant.WithMaxParallel(s.App.TenantParallel))
	if err != nil {
		a.Close()
		return nil, err
	}

	resolver, err := catalog.NewResolver(a.catalog)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.creator, err = receipt.NewCreator(a.receipts, a.events, receipt.WithArtifactBaseURL(s.App.ArtifactBaseURL))
	if err != nil {
		a.Close()
		return nil, err
	}

	model, err := llm.New(ctx, s.LLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create language model: %w", err)
	}
	if !s.LLM.HasCredential() {
		log.Warn().Msg("LLM_API_KEY is not set, every reply will explain the missing credential")
	}

	a.orch, err = orchestrator.New(orchestrator.Dependencies{
		Directory: a.phones,
		History:   statex.NewHistory(s.App.HistoryCapacity),
		Tenants:   a.tenants,
		Composer:  promptx.NewComposer(promptx.WithBase(s.App.LLMPrompt)),
		Model:     model,
		Resolver:  resolver,
		Receipts:  a.creator,
		Events:    a.events,
	}, orchestrator.Config{
		HistoryLimit: s.App.HistoryLimit,
		MaxTokens:    s.LLM.MaxCompletionToken,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openDB(ctx context.Context, s *settings) (*bun.DB, error) {
	if !s.Postgres.Enabled() {
		return nil, errors.New("POSTGRES_DSN is required (use --memory for an offline session)")
	}
	db, err := postgresx.Connect(ctx, s.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// migrate creates every table the pipeline writes to.
func migrate(ctx context.Context, db bun.IDB) error {
	if err := catalog.NewPostgresStore(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	if err := receipt.NewPostgresStore(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate receipts: %w", err)
	}
	if err := eventlog.NewBunWriter(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate event log: %w", err)
	}
	return nil
}

func (a *app) Close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("close database failed")
		}
	}
}
