// Package cli implements the thin command surface of spec §6 ("A thin
// command surface mirrors the API"): start a debate, replay one by slug,
// export transcripts. Grounded on the cobra idiom of the pack's
// Iron-Ham-claudio CLI (one file per subcommand, package-level command
// vars registered from init()).
package cli

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "aragora",
	Short: "Client for the Aragora multi-agent debate service",
}

// Execute runs the root command and returns its error, if any. Callers
// map the error to spec §6's exit codes via ExitCodeFor.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Aragora server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer auth token")
}
