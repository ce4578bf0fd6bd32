// Package cli implements kycctl, the operator command line for kycdesk.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

type globalOptions struct {
	apiURL string
	token  string
}

func (o *globalOptions) client() *apiClient {
	return newAPIClient(o.apiURL, o.token)
}

// NewRootCommand builds kycctl with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "kycctl",
		Short:         "Operate a kycdesk deployment from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", envOr("KYCDESK_API_URL", defaultAPIURL), "kycdesk API base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("KYCDESK_TOKEN"), "Bearer token for the API")

	cmd.AddCommand(
		newBatchCommand(opts),
		newClassifyCommand(),
		newMonitoringCommand(opts),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
