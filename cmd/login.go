package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gatepass/gatepass/internal/cliconfig"
)

// loginCmd saves an admin session token for a broker. The token itself is
// minted out of band with the broker's signing key; this command only
// stores it for later admin calls.
var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Save an admin session token for a Gatepass broker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionToken := args[0]
		if sessionToken == "" {
			return fmt.Errorf("token cannot be empty")
		}

		server := viper.GetString(GatepassAddrKey)
		if server == "" {
			return fmt.Errorf("server address not configured (use --server or set GATEPASS_ADDR)")
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Credentials == nil {
			cfg.Credentials = make(map[string]*cliconfig.Credential)
		}
		cfg.Credentials[u.Host] = &cliconfig.Credential{
			Token: sessionToken,
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "could not save credentials")
		}

		logSuccess("saved credentials for %s", bold(u.Host))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
