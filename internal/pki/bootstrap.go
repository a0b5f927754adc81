package pki

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // RFC 5280 key identifier method 1
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/store"
)

const (
	// KeyBits is the size of every RSA key generated by the CA.
	KeyBits = 2048

	// Validity applies to the root and to every leaf.
	Validity = 5 * 365 * 24 * time.Hour

	// CACommonName is the subject common name of the root certificate.
	CACommonName = "PKI"

	// DefaultServiceName prefixes the root certificate organization.
	DefaultServiceName = "capki"
)

type bootstrapConfig struct {
	serviceName string
	now         func() time.Time
	generateKey func() (*rsa.PrivateKey, error)
}

// BootstrapOption configures Bootstrap.
type BootstrapOption func(*bootstrapConfig)

// WithServiceName sets the organization of a newly created root to "<name> PKI CA".
func WithServiceName(name string) BootstrapOption {
	return func(c *bootstrapConfig) {
		c.serviceName = name
	}
}

// WithBootstrapClock overrides the time used for root validity.
func WithBootstrapClock(now func() time.Time) BootstrapOption {
	return func(c *bootstrapConfig) {
		c.now = now
	}
}

// WithKeyGenerator overrides RSA key generation.
func WithKeyGenerator(fn func() (*rsa.PrivateKey, error)) BootstrapOption {
	return func(c *bootstrapConfig) {
		c.generateKey = fn
	}
}

// Bootstrap loads the CA key and certificate from backend, creating and
// persisting whichever is missing. A new key is fully generated before it is
// stored and a new certificate is fully signed before it is stored, so an
// interrupted bootstrap leaves either the previous state or an absent field.
//
// Running it again against the same backend returns the same key and certificate.
func Bootstrap(ctx context.Context, backend store.Backend, opts ...BootstrapOption) (*Authority, error) {
	cfg := &bootstrapConfig{
		serviceName: DefaultServiceName,
		now:         time.Now,
		generateKey: func() (*rsa.PrivateKey, error) {
			return rsa.GenerateKey(rand.Reader, KeyBits)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := backend.Init(ctx); err != nil {
		return nil, err
	}

	caKey, generated, err := loadOrCreateKey(ctx, backend, cfg)
	if err != nil {
		return nil, err
	}

	caCert, err := loadOrCreateCertificate(ctx, backend, cfg, caKey, generated)
	if err != nil {
		return nil, err
	}

	authority, err := NewAuthority(caKey, caCert)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("namespace", backend.Namespace()).
		Str("subject", caCert.Subject.String()).
		Str("serial", caCert.SerialNumber.String()).
		Time("not_after", caCert.NotAfter).
		Msg("CA ready")

	return authority, nil
}

func loadOrCreateKey(ctx context.Context, backend store.Backend, cfg *bootstrapConfig) (*rsa.PrivateKey, bool, error) {
	data, ok, err := backend.Load(ctx, store.FieldKey)
	if err != nil {
		return nil, false, err
	}

	if ok {
		key, err := DecodePrivateKey(data)
		if err != nil {
			return nil, false, cryptoError("stored CA key is unreadable", err)
		}
		return key, false, nil
	}

	log.Info().Str("namespace", backend.Namespace()).Msg("CA key does not exist, generating a new one")

	key, err := cfg.generateKey()
	if err != nil {
		return nil, false, cryptoError("failed to generate CA key", err)
	}

	keyPEM, err := EncodePrivateKey(key)
	if err != nil {
		return nil, false, err
	}

	if err := backend.Store(ctx, store.FieldKey, keyPEM); err != nil {
		if errors.Is(err, store.ErrFieldExists) {
			log.Warn().Str("namespace", backend.Namespace()).Msg("CA key was stored by another writer, using it")
			return loadStoredKey(ctx, backend)
		}
		return nil, false, err
	}

	return key, true, nil
}

func loadStoredKey(ctx context.Context, backend store.Backend) (*rsa.PrivateKey, bool, error) {
	data, ok, err := backend.Load(ctx, store.FieldKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, cryptoError("stored CA key disappeared", store.ErrFieldExists)
	}

	key, err := DecodePrivateKey(data)
	if err != nil {
		return nil, false, cryptoError("stored CA key is unreadable", err)
	}
	return key, false, nil
}

func loadOrCreateCertificate(ctx context.Context, backend store.Backend, cfg *bootstrapConfig, caKey *rsa.PrivateKey, keyGenerated bool) (*x509.Certificate, error) {
	data, ok, err := backend.Load(ctx, store.FieldCertificate)
	if err != nil {
		return nil, err
	}

	if ok && !keyGenerated {
		cert, err := DecodeCertificate(data)
		if err != nil {
			return nil, cryptoError("stored CA certificate is unreadable", err)
		}
		return cert, nil
	}

	if ok {
		log.Warn().Str("namespace", backend.Namespace()).Msg("CA key was regenerated, replacing the stored CA certificate")
	} else {
		log.Info().Str("namespace", backend.Namespace()).Msg("CA certificate does not exist, creating a new one")
	}

	cert, err := createRootCertificate(caKey, cfg.serviceName, cfg.now())
	if err != nil {
		return nil, err
	}

	if err := backend.Store(ctx, store.FieldCertificate, EncodeCertificate(cert)); err != nil {
		return nil, err
	}

	return cert, nil
}

func createRootCertificate(caKey *rsa.PrivateKey, serviceName string, now time.Time) (*x509.Certificate, error) {
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	ski, err := subjectKeyID(&caKey.PublicKey)
	if err != nil {
		return nil, err
	}

	notBefore := now.UTC().Truncate(time.Second)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   CACommonName,
			Organization: []string{fmt.Sprintf("%s PKI CA", serviceName)},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(Validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          ski,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	// Self-signed: issuer = subject, signed with own key.
	der, err := x509.CreateCertificate(rand.Reader, template, template, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, cryptoError("failed to create CA certificate", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, cryptoError("failed to parse CA certificate", err)
	}

	return cert, nil
}

// randomSerial returns a positive 128-bit serial for the root. The stored
// counter is kept for leaves so the first issued certificate gets serial 1.
func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, cryptoError("failed to generate serial", err)
	}
	return serial.Add(serial, big.NewInt(1)), nil
}

// subjectKeyID hashes the subjectPublicKey BIT STRING with SHA-1.
func subjectKeyID(pub any) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, cryptoError("failed to marshal public key", err)
	}

	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, cryptoError("failed to unmarshal public key info", err)
	}

	sum := sha1.Sum(spki.PublicKey.Bytes)
	return sum[:], nil
}
