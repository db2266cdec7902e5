package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	statex "github.com/tanpawarit/remibot/agent/state"
	"github.com/tanpawarit/remibot/api"
	qstashx "github.com/tanpawarit/remibot/pkg/qstash"
	"github.com/tanpawarit/remibot/pkg/whatsapp"
)

func newServeCmd() *cobra.Command {
	var runMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and message API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), runMigrations)
		},
	}

	cmd.Flags().BoolVar(&runMigrations, "migrate", false, "create missing tables before serving")
	return cmd
}

func runServe(parent context.Context, runMigrations bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := loadSettings()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, s, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if runMigrations {
		if err := migrate(ctx, a.db); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	deps := api.Dependencies{
		Orchestrator: a.orch,
		Phones:       a.phones,
		Tenants:      a.tenants,
		Receipts:     a.creator,
		Events:       a.eventLog,
	}

	if s.Redis.Enabled() {
		deduper, err := statex.NewUpstashDeduper(s.Redis, statex.WithTTL(s.App.DedupeTTL))
		if err != nil {
			return err
		}
		deps.Deduper = deduper
	} else {
		deps.Deduper = statex.NewMemoryDeduper(s.App.DedupeTTL)
	}

	if s.WhatsApp.Enabled() {
		sender, err := whatsapp.NewClient(s.WhatsApp)
		if err != nil {
			return err
		}
		deps.Sender = sender
	} else {
		log.Warn().Msg("WHATSAPP_TOKEN or WHATSAPP_PHONE_ID missing, replies will not be sent")
	}

	if s.QStash.Enabled() {
		queue, err := qstashx.NewClient(s.QStash)
		if err != nil {
			return err
		}
		deps.Publisher = queue
		deps.Verifier = queue
	}

	handler, err := api.NewHandler(deps, api.Config{
		VerifyToken:   s.App.VerifyToken,
		Mode:          s.App.ProcessingMode,
		PublicBaseURL: s.App.PublicBaseURL,
	})
	if err != nil {
		return err
	}

	scheduler, err := startCacheReset(s.App.CacheResetSchedule, a.phones, a.tenants)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              s.App.Addr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.App.Addr).Str("mode", s.App.ProcessingMode).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	handler.Wait()
	log.Info().Msg("server stopped")
	return nil
}
