package commands

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type InspectCmd struct {
	Files []string `arg:"" help:"PEM files holding one or more certificates" type:"existingfile"`
}

// certificateDetails is the YAML view of a certificate.
type certificateDetails struct {
	File               string    `yaml:"file"`
	Subject            string    `yaml:"subject"`
	Issuer             string    `yaml:"issuer"`
	SerialNumber       string    `yaml:"serial_number"`
	NotBefore          time.Time `yaml:"not_before"`
	NotAfter           time.Time `yaml:"not_after"`
	IsCA               bool      `yaml:"is_ca"`
	KeyUsage           []string  `yaml:"key_usage,omitempty"`
	ExtKeyUsage        []string  `yaml:"ext_key_usage,omitempty"`
	SignatureAlgorithm string    `yaml:"signature_algorithm"`
	PublicKeyAlgorithm string    `yaml:"public_key_algorithm"`
	SubjectKeyID       string    `yaml:"subject_key_id,omitempty"`
	AuthorityKeyID     string    `yaml:"authority_key_id,omitempty"`
	FingerprintSHA256  string    `yaml:"fingerprint_sha256"`
}

func (c *InspectCmd) Run(ctx context.Context) error {
	return c.run(os.Stdout)
}

func (c *InspectCmd) run(out io.Writer) error {
	var details []certificateDetails
	for _, file := range c.Files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		certs, err := parseCertificates(data)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		for _, cert := range certs {
			details = append(details, describeCertificate(file, cert))
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(details); err != nil {
		return fmt.Errorf("failed to encode certificate details: %w", err)
	}
	return enc.Close()
}

// parseCertificates returns every CERTIFICATE block in data.
func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, errors.New("no PEM certificate found")
	}
	return certs, nil
}

func describeCertificate(file string, cert *x509.Certificate) certificateDetails {
	fingerprint := sha256.Sum256(cert.Raw)

	return certificateDetails{
		File:               file,
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		SerialNumber:       cert.SerialNumber.String(),
		NotBefore:          cert.NotBefore.UTC(),
		NotAfter:           cert.NotAfter.UTC(),
		IsCA:               cert.IsCA,
		KeyUsage:           keyUsageNames(cert.KeyUsage),
		ExtKeyUsage:        extKeyUsageNames(cert.ExtKeyUsage),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm.String(),
		SubjectKeyID:       hex.EncodeToString(cert.SubjectKeyId),
		AuthorityKeyID:     hex.EncodeToString(cert.AuthorityKeyId),
		FingerprintSHA256:  hex.EncodeToString(fingerprint[:]),
	}
}

var keyUsages = []struct {
	usage x509.KeyUsage
	name  string
}{
	{x509.KeyUsageDigitalSignature, "digital_signature"},
	{x509.KeyUsageContentCommitment, "content_commitment"},
	{x509.KeyUsageKeyEncipherment, "key_encipherment"},
	{x509.KeyUsageDataEncipherment, "data_encipherment"},
	{x509.KeyUsageKeyAgreement, "key_agreement"},
	{x509.KeyUsageCertSign, "cert_sign"},
	{x509.KeyUsageCRLSign, "crl_sign"},
	{x509.KeyUsageEncipherOnly, "encipher_only"},
	{x509.KeyUsageDecipherOnly, "decipher_only"},
}

func keyUsageNames(ku x509.KeyUsage) []string {
	var names []string
	for _, u := range keyUsages {
		if ku&u.usage != 0 {
			names = append(names, u.name)
		}
	}
	return names
}

func extKeyUsageNames(ekus []x509.ExtKeyUsage) []string {
	var names []string
	for _, eku := range ekus {
		switch eku {
		case x509.ExtKeyUsageServerAuth:
			names = append(names, "server_auth")
		case x509.ExtKeyUsageClientAuth:
			names = append(names, "client_auth")
		case x509.ExtKeyUsageCodeSigning:
			names = append(names, "code_signing")
		case x509.ExtKeyUsageEmailProtection:
			names = append(names, "email_protection")
		default:
			names = append(names, fmt.Sprintf("unknown(%d)", eku))
		}
	}
	return names
}
