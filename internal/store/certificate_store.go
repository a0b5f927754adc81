package store

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"time"
)

// CertMetadata represents metadata about an issued certificate
type CertMetadata struct {
	SerialNumber string    `dynamodbav:"serial_number"`
	SubjectDN    string    `dynamodbav:"subject_dn"`
	CommonName   string    `dynamodbav:"common_name"`
	Fingerprint  string    `dynamodbav:"fingerprint"`
	IssuedAt     time.Time `dynamodbav:"issued_at"`
	ExpiresAt    time.Time `dynamodbav:"expires_at"`
	TTL          int64     `dynamodbav:"ttl"` // Unix seconds for DynamoDB TTL
}

// CertificateStore records certificates issued by the CA.
type CertificateStore interface {
	// Get retrieves certificate metadata by serial number
	Get(ctx context.Context, serialNumber string) (*CertMetadata, error)

	// Register stores certificate metadata
	Register(ctx context.Context, cert *CertMetadata) error

	// List returns registered certificates
	List(ctx context.Context, opts ListCertificatesOptions) ([]*CertMetadata, error)
}

// ListCertificatesOptions specifies filters for listing certificates
type ListCertificatesOptions struct {
	Limit int // Max results (0 = all)
}

// Errors
var (
	ErrCertNotFound      = errors.New("certificate not found")
	ErrCertAlreadyExists = errors.New("certificate already exists")
)

// NewCertMetadataFromX509 creates CertMetadata from an X.509 certificate
func NewCertMetadataFromX509(cert *x509.Certificate) *CertMetadata {
	fingerprint := sha256.Sum256(cert.Raw)

	// TTL: 30 days after expiry
	ttl := cert.NotAfter.Add(30 * 24 * time.Hour).Unix()

	return &CertMetadata{
		SerialNumber: cert.SerialNumber.String(),
		SubjectDN:    cert.Subject.String(),
		CommonName:   cert.Subject.CommonName,
		Fingerprint:  base64.StdEncoding.EncodeToString(fingerprint[:]),
		IssuedAt:     cert.NotBefore,
		ExpiresAt:    cert.NotAfter,
		TTL:          ttl,
	}
}
