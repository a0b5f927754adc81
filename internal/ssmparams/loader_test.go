package ssmparams

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	values map[string]string
	calls  []string
}

func (f *fakeSSM) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(params.Name)
	f.calls = append(f.calls, name)

	if !aws.ToBool(params.WithDecryption) {
		return nil, errors.New("expected decryption")
	}

	value, ok := f.values[name]
	if !ok {
		return nil, &types.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: params.Name, Value: aws.String(value)}}, nil
}

func selfSignedPair(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	certPEM, keyPEM := selfSignedPair(t)

	t.Run("inline api key without tls", func(t *testing.T) {
		secrets, err := NewLoader(&fakeSSM{}).Load(ctx, Config{APIKey: "my-secret-key"})
		require.NoError(t, err)
		require.Equal(t, "my-secret-key", secrets.APIKey)
		require.False(t, secrets.HasTLS())
	})

	t.Run("ssm api key overrides inline value", func(t *testing.T) {
		client := &fakeSSM{values: map[string]string{"/capki/api-key": "from-ssm\n"}}

		secrets, err := NewLoader(client).Load(ctx, Config{APIKey: "inline", APIKeySSM: "/capki/api-key"})
		require.NoError(t, err)
		require.Equal(t, "from-ssm", secrets.APIKey)
		require.Equal(t, []string{"/capki/api-key"}, client.calls)
	})

	t.Run("tls from files", func(t *testing.T) {
		dir := t.TempDir()
		certPath := filepath.Join(dir, "tls.crt")
		keyPath := filepath.Join(dir, "tls.key")
		require.NoError(t, os.WriteFile(certPath, certPEM, 0600))
		require.NoError(t, os.WriteFile(keyPath, keyPEM, 0600))

		secrets, err := NewLoader(&fakeSSM{}).Load(ctx, Config{TLSCertPath: certPath, TLSKeyPath: keyPath})
		require.NoError(t, err)
		require.True(t, secrets.HasTLS())

		tlsConfig, err := secrets.TLSConfig()
		require.NoError(t, err)
		require.Len(t, tlsConfig.Certificates, 1)
	})

	t.Run("tls from ssm", func(t *testing.T) {
		client := &fakeSSM{values: map[string]string{
			"/capki/tls-cert": string(certPEM),
			"/capki/tls-key":  string(keyPEM),
		}}

		secrets, err := NewLoader(client).Load(ctx, Config{TLSCertSSM: "/capki/tls-cert", TLSKeySSM: "/capki/tls-key"})
		require.NoError(t, err)
		require.Equal(t, certPEM, secrets.TLSCert)
		require.Equal(t, keyPEM, secrets.TLSKey)
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, err := NewLoader(&fakeSSM{}).Load(ctx, Config{APIKeySSM: "/capki/missing"})
		require.Error(t, err)
		var notFound *types.ParameterNotFound
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("certificate without key", func(t *testing.T) {
		certPath := filepath.Join(t.TempDir(), "tls.crt")
		require.NoError(t, os.WriteFile(certPath, certPEM, 0600))

		_, err := NewLoader(&fakeSSM{}).Load(ctx, Config{TLSCertPath: certPath})
		require.Error(t, err)
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := NewLoader(&fakeSSM{}).Load(ctx, Config{
			TLSCertPath: filepath.Join(t.TempDir(), "missing.crt"),
			TLSKeyPath:  filepath.Join(t.TempDir(), "missing.key"),
		})
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestSecrets_TLSConfig_Invalid(t *testing.T) {
	_, err := (&Secrets{TLSCert: []byte("bad"), TLSKey: []byte("bad")}).TLSConfig()
	require.Error(t, err)
}
