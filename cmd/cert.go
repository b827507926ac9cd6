package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fragpit/envoy-auth/internal/model"
)

const certEndpoint = "/auth/cert"

var certOutDir string

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Retrieve client certificate",
	Long: `Exchange the configured envoy token for a client certificate and write
client.pem, ca.pem and client-key.pem to the output directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := Cert(cmd, args); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(certCmd)

	certCmd.Flags().StringVarP(&certOutDir, "out-dir", "o", ".", "Output directory")
}

func Cert(_ *cobra.Command, _ []string) error {
	if cfg.EnvoyToken == "" {
		return errors.New("envoy_token is not configured")
	}

	var bundle model.CertificateBundle
	if err := callAPI(
		http.MethodGet,
		certEndpoint,
		nil,
		bearerAuthorization(),
		nil,
		&bundle,
	); err != nil {
		return fmt.Errorf("failed to get client certificate: %w", err)
	}

	if err := os.MkdirAll(certOutDir, 0o700); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	files := []struct {
		name    string
		content string
		mode    os.FileMode
	}{
		{"client.pem", bundle.Certificate, 0o644},
		{"ca.pem", bundle.IssuingCaCertificate, 0o644},
		{"client-key.pem", bundle.PrivateKey, 0o600},
	}

	for _, f := range files {
		p := filepath.Join(certOutDir, f.name)
		if err := os.WriteFile(p, []byte(f.content+"\n"), f.mode); err != nil {
			return fmt.Errorf("error writing %s: %w", p, err)
		}
	}

	fmt.Printf("Client certificate written to %s\n", certOutDir)

	return nil
}
