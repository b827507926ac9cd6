package cmd

import (
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	deleteTokenID string
	deleteAll     bool
)

var deleteCmd = &cobra.Command{
	Use:     "delete",
	Aliases: []string{"rm"},
	Short:   "Delete envoy tokens",
	Long: `Delete one envoy token by id, or all tokens of the tenant with --all.
Deleted tokens stop authenticating immediately.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := Delete(cmd, args); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	tokenCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringVar(&deleteTokenID, "id", "", "Token id")
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "Delete all tokens of the tenant")
	deleteCmd.MarkFlagsMutuallyExclusive("id", "all")
}

func Delete(_ *cobra.Command, _ []string) error {
	endpoint := tokensEndpoint(tokenTenant)

	switch {
	case deleteAll:
	case deleteTokenID != "":
		endpoint = endpoint + "/" + deleteTokenID
	default:
		return errors.New("either --id or --all is required")
	}

	if err := callAPI(
		http.MethodDelete,
		endpoint,
		nil,
		adminAuthorization(),
		nil,
		nil,
	); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	if deleteAll {
		fmt.Printf("All tokens of tenant %s deleted\n", tokenTenant)
	} else {
		fmt.Printf("Token %s deleted\n", deleteTokenID)
	}

	return nil
}
