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

	"github.com/gatepass/gatepass/internal/config"
)

// gatewayCmd runs only the gateway, for deployments where broker and
// gateway are separate processes.
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run only the Gatepass gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("config file not specified (use --config)")
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Gateway == nil {
			return fmt.Errorf("config has no 'gateway' section")
		}

		gw, err := buildGateway(cmd.Context(), cfg.Gateway)
		if err != nil {
			return fmt.Errorf("building gateway: %w", err)
		}

		server := &http.Server{
			Addr:    cfg.Gateway.Addr,
			Handler: gw.Routes(),
		}

		go func() {
			log.Info().Msgf("Starting gateway on %s (target: %s)...", cfg.Gateway.Addr, cfg.Gateway.TargetURL)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Gateway server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down gateway...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("gateway forced to shutdown: %w", err)
		}

		log.Info().Msg("Gateway exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}
