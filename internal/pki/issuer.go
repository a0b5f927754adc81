package pki

import (
	"context"
	"crypto/x509"
	"errors"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IssuedCertificate is a signed leaf and its PEM encoding.
type IssuedCertificate struct {
	Certificate *x509.Certificate
	PEM         []byte
}

// Issuer turns CSRs into leaf certificates signed by the CA.
type Issuer struct {
	signer    CASigner
	allocator *SerialAllocator
	now       func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time used for leaf validity.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(signer CASigner, allocator *SerialAllocator, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:    signer,
		allocator: allocator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Sign validates csrPEM and issues a leaf for its subject and public key.
//
// The extensions are fixed: the certificate is never a CA, may sign, encipher
// keys and make non-repudiable signatures, and is valid for both TLS client
// and server authentication. Extensions requested in the CSR are ignored.
// The serial is allocated only after the CSR has been accepted, so rejected
// input never advances the counter.
func (i *Issuer) Sign(ctx context.Context, csrPEM []byte) (*IssuedCertificate, error) {
	start := time.Now()
	metrics := telemetry.GetMetrics()

	issued, err := i.sign(ctx, csrPEM)
	if err != nil {
		metrics.IssueErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", errorReason(err))))
		return nil, err
	}

	metrics.CertificatesIssuedTotal.Add(ctx, 1)
	metrics.IssueDuration.Record(ctx, float64(time.Since(start).Milliseconds()))

	return issued, nil
}

func (i *Issuer) sign(ctx context.Context, csrPEM []byte) (*IssuedCertificate, error) {
	csr, err := DecodeCertificateRequest(csrPEM)
	if err != nil {
		return nil, err
	}

	caCert, err := i.signer.GetCACertificate()
	if err != nil {
		return nil, cryptoError("failed to get CA certificate", err)
	}

	ski, err := subjectKeyID(csr.PublicKey)
	if err != nil {
		return nil, err
	}

	serial, err := i.allocator.Next(ctx)
	if err != nil {
		return nil, err
	}

	notBefore := i.now().UTC().Truncate(time.Second)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		RawSubject:   csr.RawSubject,
		Subject:      csr.Subject,
		PublicKey:    csr.PublicKey,
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(Validity),
		KeyUsage: x509.KeyUsageDigitalSignature |
			x509.KeyUsageContentCommitment |
			x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageClientAuth,
			x509.ExtKeyUsageServerAuth,
		},
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          ski,
		AuthorityKeyId:        caCert.SubjectKeyId,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := i.signer.SignCertificate(template)
	if err != nil {
		return nil, cryptoError("failed to sign certificate", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, cryptoError("failed to parse signed certificate", err)
	}

	log.Info().
		Str("subject", cert.Subject.String()).
		Int64("serial", serial).
		Int("csr_version", csr.Version).
		Time("not_after", cert.NotAfter).
		Msg("issued certificate")

	return &IssuedCertificate{
		Certificate: cert,
		PEM:         EncodeCertificate(cert),
	}, nil
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrCrypto):
		return "crypto"
	default:
		return "storage"
	}
}
