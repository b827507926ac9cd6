package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fragpit/envoy-auth/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server mode",
	Long: `Server mode starts the API: the token management endpoints guarded by
the admin API key, and the client certificate endpoint used by Envoy agents.`,
	Run: func(cmd *cobra.Command, args []string) { //nolint:revive
		log.Infof("Version: %s", version)
		if err := server.Run(); err != nil {
			log.Fatalf("Fatal error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
