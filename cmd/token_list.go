package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fragpit/envoy-auth/internal/model"
)

var (
	listPage int
	listSize int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List envoy tokens",
	Long:    `List envoy tokens of the tenant`,
	Run: func(cmd *cobra.Command, args []string) { //nolint:revive
		if err := List(); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	tokenCmd.AddCommand(listCmd)

	listCmd.Flags().IntVar(&listPage, "page", 0, "Page number, starting at 0")
	listCmd.Flags().IntVar(&listSize, "size", model.DefaultPageSize, "Page size")
}

func List() error {
	query := url.Values{}
	query.Set("page", strconv.Itoa(listPage))
	query.Set("size", strconv.Itoa(listSize))

	var page model.Page
	if err := callAPI(
		http.MethodGet,
		tokensEndpoint(tokenTenant),
		query,
		adminAuthorization(),
		nil,
		&page,
	); err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDescription\tCreated\tLastUsed")
	for _, tk := range page.Content {
		lastUsed := "never"
		if tk.LastUsed != nil {
			lastUsed = tk.LastUsed.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			tk.ID, tk.Description, tk.CreatedTimestamp.Format(time.RFC3339), lastUsed)
	}
	w.Flush()

	fmt.Printf("Page %d of %d, %d tokens\n",
		page.Number+1, max(page.TotalPages, 1), page.TotalElements)

	return nil
}
