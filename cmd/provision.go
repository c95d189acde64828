package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gatepass/gatepass/internal/config"
)

// provisionCmd registers the providers from the config file against a
// running broker. Re-running it is safe: existing registrations are
// verified or updated, never duplicated.
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Register providers from the config file against a broker",
	Example: `  gatepass provision --config gatepass.yaml --server http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("config file not specified (use --config)")
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if len(cfg.Providers) == 0 {
			log.Warn().Msg("config declares no providers, nothing to do")
			return nil
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		for _, reg := range cfg.Providers {
			saved, err := cli.RegisterProvider(cmd.Context(), reg)
			if err != nil {
				return logError(err, "", fmt.Sprintf("failed to register provider '%s'", reg.Name))
			}
			logSuccess("registered provider %s (client: %s)", bold(saved.Name), saved.ClientID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}
