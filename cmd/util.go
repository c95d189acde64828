package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/gatepass/gatepass/internal/cliconfig"
	"github.com/gatepass/gatepass/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintfFunc()

	redCross   = color.New(color.FgRed).Sprint("✗")
	greenCheck = color.New(color.FgGreen).Sprint("✓")
)

// BeQuietError signals that the error was already reported to the user.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "command failed"
}

func logError(err error, correlation, msg string) error {
	if correlation != "" {
		log.Error().Msgf("%s %s (correlation ID: %s)", redCross, msg, correlation)
	} else {
		log.Error().Msgf("%s %s", redCross, msg)
	}
	log.Error().Msgf("error: %v", err)
	return BeQuietError{}
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf(greenCheck+" "+format, args...)
}

func getClient() (*client.Client, error) {
	// we need the user to provide some server address first
	server := viper.GetString(GatepassAddrKey)
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set GATEPASS_ADDR)")
	}

	cfg, err := cliconfig.Load()
	if err != nil {
		return nil, err
	}

	var sessionToken string

	credential, err := cfg.GetCredential(server)
	if err != nil {
		if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
			return nil, err
		}
	} else {
		sessionToken = credential.Token
	}

	if envToken := os.Getenv("GATEPASS_TOKEN"); envToken != "" {
		sessionToken = envToken
	}

	return client.New(server, client.WithAuthToken(sessionToken)), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
