package cmd

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/gatepass/gatepass/internal/config"
)

// debugConfigCmd dumps the fully parsed configuration, with defaults
// applied, as Go structures. Secret values are redacted.
var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Dump the parsed configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("config file not specified (use --config)")
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		for i := range cfg.Secrets {
			cfg.Secrets[i].Value.ClientSecret = "(redacted)"
		}
		if cfg.Admin.SigningKey != "" {
			cfg.Admin.SigningKey = "(redacted)"
		}

		spew.Dump(cfg)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugConfigCmd)
}
