package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
)

const (
	blockPrivateKey    = "PRIVATE KEY"
	blockRSAPrivateKey = "RSA PRIVATE KEY"
	blockCertificate   = "CERTIFICATE"
	blockCSR           = "CERTIFICATE REQUEST"
	blockLegacyCSR     = "NEW CERTIFICATE REQUEST"
)

// EncodePrivateKey returns the key as a PKCS#8 PEM block.
func EncodePrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, cryptoError("failed to marshal private key", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockPrivateKey, Bytes: der}), nil
}

// DecodePrivateKey accepts PKCS#8 and, for keys written by older releases, PKCS#1.
func DecodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, parseError("failed to decode private key PEM", nil)
	}

	switch block.Type {
	case blockPrivateKey:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, parseError("failed to parse PKCS#8 private key", err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, parseError("private key is not RSA", nil)
		}
		return rsaKey, nil
	case blockRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, parseError("failed to parse PKCS#1 private key", err)
		}
		return key, nil
	default:
		return nil, parseError("unexpected PEM block "+block.Type, nil)
	}
}

func EncodeCertificate(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockCertificate, Bytes: cert.Raw})
}

func DecodeCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != blockCertificate {
		return nil, parseError("failed to decode certificate PEM", nil)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, parseError("failed to parse certificate", err)
	}
	return cert, nil
}

// DecodeCertificateRequest parses a PEM CSR and verifies its self-signature.
func DecodeCertificateRequest(data []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, parseError("failed to decode CSR PEM", nil)
	}
	if block.Type != blockCSR && block.Type != blockLegacyCSR {
		return nil, parseError("unexpected PEM block "+block.Type, nil)
	}

	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, parseError("failed to parse CSR", err)
	}

	if err := csr.CheckSignature(); err != nil {
		return nil, parseError("invalid CSR signature", err)
	}

	return csr, nil
}

func EncodeCertificateRequest(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockCSR, Bytes: der})
}
