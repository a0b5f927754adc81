package pki

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/capki/internal/store"
	"github.com/wolfeidau/capki/internal/store/memory"
)

// newCSR returns a PEM CSR for subject and the key that signed it.
func newCSR(t *testing.T, subject pkix.Name) ([]byte, crypto.Signer) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{Subject: subject}, key)
	require.NoError(t, err)

	return EncodeCertificateRequest(der), key
}

func newBackend(t *testing.T) *memory.Backend {
	t.Helper()
	return memory.NewBackend(t.Name())
}

func counter(t *testing.T, backend store.Backend) string {
	t.Helper()

	data, _, err := backend.Load(context.Background(), store.FieldSerialNumber)
	require.NoError(t, err)
	return string(data)
}

// faultyBackend wraps a backend and fails selected operations.
type faultyBackend struct {
	store.Backend
	loadErr   error
	storeErr  error
	serialErr error
}

func (f *faultyBackend) Load(ctx context.Context, field store.Field) ([]byte, bool, error) {
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	return f.Backend.Load(ctx, field)
}

func (f *faultyBackend) Store(ctx context.Context, field store.Field, data []byte) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	return f.Backend.Store(ctx, field, data)
}

func (f *faultyBackend) NextSerial(ctx context.Context) (int64, error) {
	if f.serialErr != nil {
		return 0, f.serialErr
	}
	return f.Backend.NextSerial(ctx)
}
