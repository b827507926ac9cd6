package certs

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/model"
)

const (
	LabelCertificate = "CERTIFICATE"
	LabelPrivateKey  = "RSA PRIVATE KEY"

	pemLineLength = 64
)

// Cache is the client certificate cache keyed by tenant id.
type Cache interface {
	Get(key string) (*model.CertificateBundle, bool)
	Set(key string, bundle *model.CertificateBundle)
}

type Service struct {
	issuer   model.CertificateIssuer
	cache    Cache
	roleName string
}

func NewService(issuer model.CertificateIssuer, cache Cache, roleName string) *Service {
	return &Service{
		issuer:   issuer,
		cache:    cache,
		roleName: roleName,
	}
}

// GetClientCertificate returns the cached bundle for the tenant, issuing
// and caching a new one on a miss. Concurrent misses for one tenant may
// each issue a certificate; the last cache write wins. Failed issuances
// are never cached.
func (s *Service) GetClientCertificate(
	ctx context.Context,
	tenantID string,
) (*model.CertificateBundle, error) {
	if bundle, ok := s.cache.Get(tenantID); ok {
		return bundle, nil
	}

	log.Infof("Allocating client certificates for tenant: %s", tenantID)

	raw, err := s.issuer.IssueCertificate(ctx, s.roleName, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error issuing certificate for tenant %s: %w", tenantID, err)
	}

	bundle := &model.CertificateBundle{
		Certificate:          FormatPEM(raw.Certificate, LabelCertificate),
		IssuingCaCertificate: FormatPEM(raw.IssuingCaCertificate, LabelCertificate),
		PrivateKey:           FormatPEM(raw.PrivateKey, LabelPrivateKey),
	}

	if ctx.Err() == nil {
		s.cache.Set(tenantID, bundle)
	}

	return bundle, nil
}

// FormatPEM wraps a base64 body in BEGIN/END markers, breaking it into
// lines of at most 64 characters.
func FormatPEM(body, label string) string {
	var b strings.Builder
	b.Grow(len(body) + len(body)/pemLineLength + 2*len(label) + 32)

	b.WriteString("-----BEGIN " + label + "-----")
	for i := 0; i < len(body); i++ {
		if i%pemLineLength == 0 {
			b.WriteByte('\n')
		}
		b.WriteByte(body[i])
	}
	b.WriteString("\n-----END " + label + "-----")

	return b.String()
}
