// Package vault issues client certificates from a HashiCorp Vault PKI
// secrets engine.
package vault

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/vault/api"
	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/model"
)

const defaultMount = "pki"

var ErrMalformedResponse = errors.New("malformed pki response")

type Config struct {
	Address    string
	Token      string
	Mount      string
	Timeout    time.Duration
	CACert     string
	SkipVerify bool
}

// Issuer is a model.CertificateIssuer backed by a Vault client.
type Issuer struct {
	client *api.Client
	mount  string
}

var _ model.CertificateIssuer = (*Issuer)(nil)

func New(cfg *Config) (*Issuer, error) {
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("error reading vault environment: %w", config.Error)
	}

	if cfg.Address != "" {
		config.Address = cfg.Address
	}

	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}

	if cfg.CACert != "" || cfg.SkipVerify {
		if err := config.ConfigureTLS(&api.TLSConfig{
			CACert:   cfg.CACert,
			Insecure: cfg.SkipVerify,
		}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = defaultMount
	}

	return &Issuer{
		client: client,
		mount:  mount,
	}, nil
}

// IssueCertificate asks the PKI role to sign a new certificate with identity
// as its common name. The certificate material is requested in DER format so
// that the returned fields are bare base64 bodies.
func (i *Issuer) IssueCertificate(
	ctx context.Context,
	roleName, identity string,
) (*model.RawCertificate, error) {
	p := path.Join(i.mount, "issue", roleName)

	log.Infof("Issuing client certificate from Vault, role: %s, identity: %s", roleName, identity)

	secret, err := i.client.Logical().WriteWithContext(ctx, p, map[string]any{
		"common_name": identity,
		"format":      "der",
	})
	if err != nil {
		return nil, fmt.Errorf("vault issue %s failed: %w", p, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: empty response from %s", ErrMalformedResponse, p)
	}

	raw := &model.RawCertificate{}
	fields := []struct {
		key string
		dst *string
	}{
		{"certificate", &raw.Certificate},
		{"issuing_ca", &raw.IssuingCaCertificate},
		{"private_key", &raw.PrivateKey},
	}

	for _, f := range fields {
		v, ok := secret.Data[f.key].(string)
		if !ok || v == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, f.key)
		}
		*f.dst = v
	}

	return raw, nil
}

// Healthy reports whether Vault is initialized and unsealed.
func (i *Issuer) Healthy(ctx context.Context) error {
	health, err := i.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if !health.Initialized || health.Sealed {
		return fmt.Errorf(
			"vault unavailable: initialized=%t sealed=%t",
			health.Initialized, health.Sealed,
		)
	}

	return nil
}
