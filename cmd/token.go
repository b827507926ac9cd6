package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var tokenTenant string

var tokenCmd = &cobra.Command{
	Use:     "token",
	Aliases: []string{"tokens"},
	Short:   "Operations with envoy tokens",
	Long:    `Token command group allows to manage envoy tokens of a tenant`,
	Run: func(cmd *cobra.Command, args []string) { //nolint:revive
		log.Info("token called")
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.PersistentFlags().StringVarP(&tokenTenant, "tenant", "t", "", "Tenant id")
	if err := tokenCmd.MarkPersistentFlagRequired("tenant"); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func tokensEndpoint(tenantID string) string {
	return fmt.Sprintf("/api/tenant/%s/envoy-tokens", tenantID)
}
