package commands

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/pki"
)

type IssueCmd struct {
	ClientFlags `embed:""`

	CN           string   `help:"common name of the certificate" name:"cn" required:""`
	Organization []string `help:"organization names" short:"O"`
	Name         string   `help:"base name of the key and certificate files, defaults to the common name"`
	Dir          string   `help:"directory to write the key and certificate to" default:"."`
}

func (c *IssueCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := c.newClient(globals)
	if err != nil {
		return err
	}

	key, csrPEM, err := newCertificateRequest(pkix.Name{CommonName: c.CN, Organization: c.Organization})
	if err != nil {
		return err
	}

	certPEM, err := cl.IssueCertificate(ctx, csrPEM)
	if err != nil {
		return err
	}

	cert, err := pki.DecodeCertificate(certPEM)
	if err != nil {
		return err
	}

	keyPEM, err := pki.EncodePrivateKey(key)
	if err != nil {
		return err
	}

	keyPath, certPath := c.paths()
	if err := writeFile(keyPath, keyPEM, 0o600); err != nil {
		return err
	}
	if err := writeFile(certPath, certPEM, 0o644); err != nil {
		return err
	}

	log.Info().
		Str("subject", cert.Subject.String()).
		Str("serial", cert.SerialNumber.String()).
		Time("not_after", cert.NotAfter).
		Str("key", keyPath).
		Str("certificate", certPath).
		Msg("issued certificate")

	return nil
}

func (c *IssueCmd) paths() (keyPath, certPath string) {
	name := c.Name
	if name == "" {
		name = c.CN
	}
	base := filepath.Join(c.Dir, filepath.Base(name))
	return base + ".key", base + ".crt"
}

// newCertificateRequest generates an RSA key of the size the CA uses and a
// CSR for subject signed by it.
func newCertificateRequest(subject pkix.Name) (*rsa.PrivateKey, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, pki.KeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %w", err)
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:            subject,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate request: %w", err)
	}

	return key, pki.EncodeCertificateRequest(der), nil
}
