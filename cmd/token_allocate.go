package cmd

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fragpit/envoy-auth/internal/api"
	"github.com/fragpit/envoy-auth/internal/model"
)

var tokenDescription string

var allocateCmd = &cobra.Command{
	Use:     "allocate",
	Aliases: []string{"create", "add"},
	Short:   "Allocate envoy token",
	Long:    `Allocate a new envoy token for the tenant`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := Allocate(cmd, args); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	tokenCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().
		StringVar(&tokenDescription, "description", "", "Token description")
}

func Allocate(_ *cobra.Command, _ []string) error {
	var tk model.EnvoyToken
	if err := callAPI(
		http.MethodPost,
		tokensEndpoint(tokenTenant),
		nil,
		adminAuthorization(),
		api.TokenRequest{Description: tokenDescription},
		&tk,
	); err != nil {
		return fmt.Errorf("failed to allocate token: %w", err)
	}

	fmt.Printf("Token id: %s tenant: %s\n%s\n", tk.ID, tk.TenantID, tk.Token)

	return nil
}
