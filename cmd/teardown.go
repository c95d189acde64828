package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/core"
)

// teardownCmd removes the providers declared in the config file from a
// running broker, along with their mirrored secrets. Resources that are
// already absent are skipped quietly, so a teardown can be re-run after a
// partial failure.
var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Remove the config file's providers from a broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("config file not specified (use --config)")
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		for _, reg := range cfg.Providers {
			if err := cli.DeleteProvider(cmd.Context(), reg.Name); err != nil {
				return logError(err, "", fmt.Sprintf("failed to delete provider '%s'", reg.Name))
			}
			log.Info().Msgf("deleted provider '%s'", reg.Name)

			mirrored := core.SecretRef{Namespace: cfg.Broker.Namespace, Name: reg.SecretRef.Name}
			if err := cli.DeleteMirroredSecret(cmd.Context(), mirrored); err != nil {
				return logError(err, "", fmt.Sprintf("failed to delete mirrored secret '%s'", mirrored))
			}
			log.Info().Msgf("deleted mirrored secret '%s'", mirrored)
		}

		logSuccess("teardown complete (%d providers)", len(cfg.Providers))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(teardownCmd)
}
