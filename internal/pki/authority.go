package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

var _ CASigner = (*Authority)(nil)

// Authority is the loaded root key and certificate. It is built once by
// Bootstrap and is read-only afterwards, so it is safe for concurrent use.
type Authority struct {
	caKey   *rsa.PrivateKey
	caCert  *x509.Certificate
	certPEM []byte
}

// NewAuthority pairs a key with its self-signed certificate after checking they match.
func NewAuthority(caKey *rsa.PrivateKey, caCert *x509.Certificate) (*Authority, error) {
	if err := verifyCertKeyPair(caCert, caKey); err != nil {
		return nil, cryptoError("CA key and certificate do not match", err)
	}

	return &Authority{
		caKey:   caKey,
		caCert:  caCert,
		certPEM: EncodeCertificate(caCert),
	}, nil
}

// SignCertificate signs a certificate template using the CA private key.
// Returns DER-encoded certificate bytes.
func (a *Authority) SignCertificate(template *x509.Certificate) ([]byte, error) {
	return x509.CreateCertificate(rand.Reader, template, a.caCert, template.PublicKey, a.caKey)
}

// GetCACertificate returns the CA certificate.
func (a *Authority) GetCACertificate() (*x509.Certificate, error) {
	return a.caCert, nil
}

// CertificatePEM returns the PEM encoding of the CA certificate.
func (a *Authority) CertificatePEM() []byte {
	return a.certPEM
}

// verifyCertKeyPair checks that a certificate's public key matches a private key
func verifyCertKeyPair(cert *x509.Certificate, key crypto.Signer) error {
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("private key is not RSA")
	}

	certPubKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not RSA")
	}

	if !rsaKey.PublicKey.Equal(certPubKey) {
		return fmt.Errorf("public keys do not match")
	}

	return nil
}
