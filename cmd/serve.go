package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/KatnessChen/MaraMap-Backend/internal/api"
	"github.com/KatnessChen/MaraMap-Backend/internal/audit"
	"github.com/KatnessChen/MaraMap-Backend/internal/config"
	"github.com/KatnessChen/MaraMap-Backend/internal/engine"
	"github.com/KatnessChen/MaraMap-Backend/internal/keys"
	"github.com/KatnessChen/MaraMap-Backend/internal/logging"
	"github.com/KatnessChen/MaraMap-Backend/internal/store"
	"github.com/KatnessChen/MaraMap-Backend/internal/tasks"
)

const PrefetchTaskName = "jwks.prefetch"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion server",
	Long: `Starts the HTTP server exposing POST /api/v1/ingest and the health endpoints.

Configuration is read from --config and can be overridden through MARAMAP_*
environment variables. When SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are
set, tokens are verified against the project's auth keys and posts are
stored through its REST interface.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = log.Logger.WithContext(ctx)

		cfg, err := f.LoadServerConfig()
		if err != nil {
			return err
		}

		log.Info().Str("type", cfg.Store.Type).Msg("Initializing store...")
		postStore, err := store.Build(ctx, cfg.Store)
		if err != nil {
			return fmt.Errorf("building store: %w", err)
		}
		defer func() {
			if err := postStore.Close(); err != nil {
				log.Warn().Err(err).Msg("closing store")
			}
		}()

		auditor, err := audit.New(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Warn().Err(err).Msg("closing auditor")
			}
		}()

		log.Info().Msg("Initializing key resolver...")
		resolver, err := f.BuildResolver(ctx, cfg.Auth)
		if err != nil {
			return fmt.Errorf("building key resolver: %w", err)
		}
		verifier := f.BuildVerifier(cfg.Auth, resolver)

		taskManager := tasks.NewManager(ctx)
		defer taskManager.Stop()
		registerPrefetch(ctx, taskManager, resolver, cfg.Auth)

		opts := api.Options{MaxBodyBytes: cfg.Server.MaxBodyBytes}
		if cfg.Auth.Admin != nil {
			if opts.Admin, err = engine.Compile(*cfg.Auth.Admin); err != nil {
				return fmt.Errorf("compiling admin policy: %w", err)
			}
			log.Info().Msg("Admin routes enabled")
		}
		srv := api.NewServer(verifier, postStore, auditor, resolver, taskManager, opts)

		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      srv.Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("jwks_url", resolver.URL()).Msgf("Starting server on %s...", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server crashed: %w", err)
			}
		case <-ctx.Done():
		}
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

// registerPrefetch warms the key cache and keeps it warm when an interval is set.
func registerPrefetch(ctx context.Context, m *tasks.Manager, resolver *keys.Resolver, conf config.AuthConfig) {
	m.Register(PrefetchTaskName, conf.PrefetchInterval, func(ctx context.Context, logger logging.InternalLogger) error {
		if err := resolver.Refresh(ctx); err != nil {
			return err
		}
		logger.Info("%d signing keys cached from %s", len(resolver.Keys()), resolver.URL())
		return nil
	})
	// a failed warm-up is not fatal, keys are fetched on demand
	if ran, err := m.RunNow(ctx, PrefetchTaskName); err != nil || !ran {
		log.Warn().Err(err).Msg("initial key prefetch did not run")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	bindServeFlags(serveCmd.Flags())
}

// bindServeFlags exposes the most common overrides as flags.
func bindServeFlags(flags *pflag.FlagSet) {
	for _, fl := range []struct{ name, key, usage string }{
		{"addr", config.ServerAddrKey, "address to listen on (overrides server.addr)"},
		{"issuer", config.AuthIssuerURLKey, "identity provider base URL (overrides auth.issuer_url)"},
		{"jwks-url", config.AuthJWKSURLKey, "key set URL (overrides auth.jwks_url)"},
		{"store", config.StoreTypeKey, "store type: memory, sqlite, postgres, postgrest"},
		{"audit-log", config.AuditPathKey, "write the audit trail to this file"},
	} {
		flags.String(fl.name, "", fl.usage)
		_ = viper.BindPFlag(fl.key, flags.Lookup(fl.name))
	}
}
