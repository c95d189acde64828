package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var auditTokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List currently cached tokens",
	Long: `Retrieves the broker's live token cache entries: which workload holds a
token for which provider and when it expires. Token values are never
included.

This command requires an authenticated session (via 'gatepass login') with admin privileges.`,
	Example: `  gatepass audit tokens`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching cached tokens...")
		entries, err := cli.ListCachedTokens(cmd.Context())
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			log.Info().Msg("No cached tokens found")
			return nil
		}
		log.Debug().Msgf("Retrieved %d cached token(s)", len(entries))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Workload", "Provider", "Fingerprint", "Expires",
		})

		for _, e := range entries {
			timeLeft := time.Until(e.ExpiresAt).Round(time.Minute)

			t.AppendRow(table.Row{
				bold(truncate(e.Identity.Ref, 64)),
				e.Provider,
				faint("%s", truncate(e.Fingerprint, 16)),
				fmt.Sprintf("%s (%s)", e.ExpiresAt.Format("15:04"), faint(timeLeft.String())),
			})
		}

		s := table.StyleRounded
		s.Format.Header = text.FormatDefault
		t.SetStyle(s)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditTokensCmd)
}
