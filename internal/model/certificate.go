package model

import "context"

// CertificateBundle is a PEM-formatted client certificate, its issuing CA
// and private key.
type CertificateBundle struct {
	Certificate          string `json:"certificate"`
	IssuingCaCertificate string `json:"issuingCaCertificate"`
	PrivateKey           string `json:"privateKey"`
}

// RawCertificate holds base64 bodies as returned by the PKI backend,
// without PEM armor.
type RawCertificate struct {
	Certificate          string
	IssuingCaCertificate string
	PrivateKey           string
}

type CertificateIssuer interface {
	IssueCertificate(ctx context.Context, roleName, identity string) (*RawCertificate, error)
}
