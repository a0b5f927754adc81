package pki

import (
	"crypto/x509"
)

// CASigner signs certificate templates with the root CA key.
type CASigner interface {
	// SignCertificate signs a certificate template and returns the DER-encoded certificate bytes.
	// The template must be fully populated, including PublicKey, serial and extensions.
	SignCertificate(template *x509.Certificate) ([]byte, error)

	// GetCACertificate returns the CA certificate (public key only).
	GetCACertificate() (*x509.Certificate, error)
}
