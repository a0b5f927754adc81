package store

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSerial(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "empty is zero", input: "", want: 0},
		{name: "whitespace is zero", input: " \n", want: 0},
		{name: "plain decimal", input: "41", want: 41},
		{name: "trailing newline", input: "7\n", want: 7},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSerial([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSerial(t *testing.T) {
	n, err := ParseSerial(FormatSerial(12345))
	require.NoError(t, err)
	require.Equal(t, int64(12345), n)
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk full")

	err := StorageError(cause, "failed to write key")
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "failed to write key")

	require.NoError(t, StorageError(nil, "unused"))
}

func TestNewCertMetadataFromX509(t *testing.T) {
	notBefore := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cert := &x509.Certificate{
		Raw:          []byte("der"),
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "demo", Organization: []string{"Acme"}},
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(24 * time.Hour),
	}

	meta := NewCertMetadataFromX509(cert)
	require.Equal(t, "3", meta.SerialNumber)
	require.Equal(t, "demo", meta.CommonName)
	require.Equal(t, "CN=demo,O=Acme", meta.SubjectDN)
	require.NotEmpty(t, meta.Fingerprint)
	require.Equal(t, notBefore, meta.IssuedAt)
	require.Equal(t, cert.NotAfter.Add(30*24*time.Hour).Unix(), meta.TTL)
}

func TestCheckField(t *testing.T) {
	for _, field := range Fields {
		t.Run(string(field), func(t *testing.T) {
			require.NoError(t, CheckField(field))
		})
	}

	t.Run("unknown", func(t *testing.T) {
		require.ErrorIs(t, CheckField(Field("key")), ErrStorage)
	})
}
