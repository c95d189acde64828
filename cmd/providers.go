package cmd

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// providersCmd lists the provider registrations known to a broker.
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers",
	Long: `Retrieves all provider registrations from the broker.

This command requires an authenticated session (via 'gatepass login') with admin privileges.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		regs, err := cli.ListProviders(cmd.Context())
		if err != nil {
			return err
		}

		if len(regs) == 0 {
			log.Info().Msg("No providers registered")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Name", "Discovery URL", "Client ID", "Secret", "Scopes",
		})

		for _, reg := range regs {
			t.AppendRow(table.Row{
				bold(reg.Name),
				truncate(reg.DiscoveryURL, 50),
				reg.ClientID,
				reg.SecretRef.String(),
				strings.Join(reg.Scopes, " "),
			})
		}

		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
