package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gatepass/gatepass/internal/api"
	"github.com/gatepass/gatepass/internal/audit"
	"github.com/gatepass/gatepass/internal/broker"
	"github.com/gatepass/gatepass/internal/cache"
	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/core"
	"github.com/gatepass/gatepass/internal/gateway"
	"github.com/gatepass/gatepass/internal/identity"
	"github.com/gatepass/gatepass/internal/issuer"
	"github.com/gatepass/gatepass/internal/logging"
	"github.com/gatepass/gatepass/internal/provision"
	"github.com/gatepass/gatepass/internal/secrets"
	"github.com/gatepass/gatepass/internal/validation"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Gatepass broker (and gateway, if configured)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("config file not specified (use --config)")
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log.Info().Msg("Initializing secret store...")
		store := secrets.NewInMemoryStore()
		for _, seed := range cfg.Secrets {
			if _, err := store.Put(cmd.Context(), seed.Ref, seed.Value); err != nil {
				return fmt.Errorf("seeding secret '%s': %w", seed.Ref, err)
			}
			for _, reader := range seed.Readers {
				if err := store.Allow(seed.Ref, reader); err != nil {
					return fmt.Errorf("granting '%s' on secret '%s': %w", reader, seed.Ref, err)
				}
			}
		}

		log.Info().Msg("Registering providers...")
		directory := provision.NewInMemoryDirectory()
		registrar := provision.NewRegistrar(directory, store, cfg.Broker.Namespace, logging.NewZLogger(log.Logger))
		for _, reg := range cfg.Providers {
			if _, err := registrar.RegisterProvider(cmd.Context(), reg); err != nil {
				return fmt.Errorf("registering provider '%s': %w", reg.Name, err)
			}
		}

		auditor, audits, err := buildAuditor(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			_ = auditor.Close()
		}()

		tokenCache := cache.NewInMemoryTokenCache(cfg.Broker.CacheSkew)
		exchanger := issuer.NewClientCredentialsExchanger(nil)

		resolver := identity.NewRoleResolver()
		svc := broker.NewTokenService(
			resolver,
			directory,
			store,
			tokenCache,
			exchanger,
			auditor,
			cfg.Broker.CacheTTL,
		)

		srv := api.NewServer(svc, registrar, resolver, directory, tokenCache, audits)
		brokerServer := &http.Server{
			Addr:    cfg.Broker.Addr,
			Handler: srv.Routes([]byte(cfg.Admin.SigningKey)),
		}

		go func() {
			log.Info().Msgf("Starting broker on %s...", cfg.Broker.Addr)
			if err := brokerServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Broker server crashed")
			}
		}()

		var gatewayServer *http.Server
		if cfg.Gateway != nil {
			gw, err := buildGateway(cmd.Context(), cfg.Gateway)
			if err != nil {
				return fmt.Errorf("building gateway: %w", err)
			}
			gatewayServer = &http.Server{
				Addr:    cfg.Gateway.Addr,
				Handler: gw.Routes(),
			}
			go func() {
				log.Info().Msgf("Starting gateway on %s...", cfg.Gateway.Addr)
				if err := gatewayServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("Gateway server crashed")
				}
			}()
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := brokerServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("broker forced to shutdown: %w", err)
		}
		if gatewayServer != nil {
			if err := gatewayServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("gateway forced to shutdown: %w", err)
			}
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func buildAuditor(cfg config.AuditConfig) (core.Auditor, core.AuditQuerier, error) {
	if !cfg.Enabled {
		return audit.NewNoopAuditor(), nil, nil
	}
	switch cfg.Type {
	case "file":
		a, err := audit.NewFileAuditor(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return a, nil, nil
	case "memory", "":
		a := audit.NewInMemoryAuditor()
		return a, a, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit type '%s'", cfg.Type)
	}
}

func buildGateway(ctx context.Context, cfg *config.GatewayConfig) (*gateway.Gateway, error) {
	var policy *gateway.ClaimPolicy
	if p := cfg.ClaimPolicy; p != nil {
		if p.Expr != "" {
			prog, err := validation.CompileClaimExpr(p.Expr)
			if err != nil {
				return nil, fmt.Errorf("compiling claim policy expression: %w", err)
			}
			policy = gateway.NewClaimPolicy(p.Condition, prog)
		} else {
			policy = gateway.NewClaimPolicy(p.Condition, nil)
		}
	}

	authorizer, err := gateway.NewAuthorizer(ctx, cfg.IssuerURL, cfg.AllowedClients, policy)
	if err != nil {
		return nil, err
	}
	return gateway.New(authorizer, cfg.TargetURL)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
