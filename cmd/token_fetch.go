package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gatepass/gatepass/pkg/client"
)

var (
	tokenFetchRole     string
	tokenFetchAgent    string
	tokenFetchProvider string
	tokenFetchRaw      bool
)

// tokenFetchCmd requests a token from the broker as a given workload.
var tokenFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a token for a provider as a workload",
	Example: `  gatepass token fetch --role role/agent-runner --provider acme-gateway-auth
  gatepass token fetch --role role/agent-runner --agent billing --provider acme-gateway-auth --raw`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		result, correlation, err := cli.FetchToken(cmd.Context(), client.FetchTokenOptions{
			ExecutionRole: tokenFetchRole,
			Agent:         tokenFetchAgent,
			Provider:      tokenFetchProvider,
		})
		if err != nil {
			return logError(err, correlation, "failed to fetch token")
		}

		if tokenFetchRaw {
			// raw mode prints only the token, for shell substitution
			fmt.Println(result.Token.Value)
			return nil
		}

		source := "issuer exchange"
		if result.CacheHit {
			source = "cache"
		}
		log.Info().Msgf("token for %s served from %s, expires %s",
			bold(result.Token.Provider), source,
			result.Token.ExpiresAt.Format(time.RFC3339))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	tokenCmd.AddCommand(tokenFetchCmd)

	tokenFetchCmd.Flags().StringVar(&tokenFetchRole, "role", "", "Execution role of the workload")
	tokenFetchCmd.Flags().StringVar(&tokenFetchAgent, "agent", "", "Agent name within the execution role (optional)")
	tokenFetchCmd.Flags().StringVar(&tokenFetchProvider, "provider", "", "Logical provider name")
	tokenFetchCmd.Flags().BoolVar(&tokenFetchRaw, "raw", false, "Print only the token value")

	_ = tokenFetchCmd.MarkFlagRequired("role")
	_ = tokenFetchCmd.MarkFlagRequired("provider")
}
