package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/capki/api/pkiv1connect"
	"github.com/wolfeidau/capki/internal/auth"
	"github.com/wolfeidau/capki/internal/pki"
	"github.com/wolfeidau/capki/internal/server"
	"github.com/wolfeidau/capki/internal/store/memory"
)

func newTestServer(t *testing.T, secret string) string {
	t.Helper()

	backend := memory.NewBackend(t.Name())
	authority, err := pki.Bootstrap(context.Background(), backend)
	require.NoError(t, err)

	issuer := pki.NewIssuer(authority, pki.NewSerialAllocator(backend))
	srv := server.NewServer(server.NewPKIServer(authority, issuer), auth.NewAuthorizer(secret), zerolog.Nop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts.URL
}

func newCSR(t *testing.T) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: "client-test"},
	}, key)
	require.NoError(t, err)

	return pki.EncodeCertificateRequest(der)
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	url := newTestServer(t, "my-secret-key")

	t.Run("with api key", func(t *testing.T) {
		c := New(Config{ServerURL: url, APIKey: "my-secret-key"})

		caPEM, err := c.GetCA(ctx)
		require.NoError(t, err)

		caCert, err := pki.DecodeCertificate(caPEM)
		require.NoError(t, err)
		require.True(t, caCert.IsCA)

		certPEM, err := c.IssueCertificate(ctx, newCSR(t))
		require.NoError(t, err)

		cert, err := pki.DecodeCertificate(certPEM)
		require.NoError(t, err)
		require.Equal(t, "client-test", cert.Subject.CommonName)
		require.NoError(t, cert.CheckSignatureFrom(caCert))
	})

	t.Run("without api key", func(t *testing.T) {
		c := New(Config{ServerURL: url})

		_, err := c.GetCA(ctx)
		require.Error(t, err)
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("wrong api key", func(t *testing.T) {
		c := New(Config{ServerURL: url, APIKey: "nope"})

		_, err := c.IssueCertificate(ctx, newCSR(t))
		require.Error(t, err)
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "http://localhost:8080", cfg.ServerURL)
	require.NotZero(t, cfg.Timeout)
}

func TestNew_DebugLogsCalls(t *testing.T) {
	url := newTestServer(t, "")

	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = previous })

	t.Run("debug enabled", func(t *testing.T) {
		buf.Reset()
		c := New(Config{ServerURL: url, Debug: true})

		_, err := c.GetCA(context.Background())
		require.NoError(t, err)
		require.Contains(t, buf.String(), pkiv1connect.PKIServiceGetCAProcedure)
		require.Contains(t, buf.String(), `"message":"rpc call"`)
	})

	t.Run("debug disabled", func(t *testing.T) {
		buf.Reset()
		c := New(Config{ServerURL: url})

		_, err := c.GetCA(context.Background())
		require.NoError(t, err)
		require.NotContains(t, buf.String(), `"message":"rpc call"`)
	})
}

func TestNewDebugInterceptor_LogsFailures(t *testing.T) {
	url := newTestServer(t, "secret")

	var buf bytes.Buffer
	c := New(Config{ServerURL: url}, connect.WithInterceptors(NewDebugInterceptor(zerolog.New(&buf))))

	_, err := c.GetCA(context.Background())
	require.Error(t, err)
	require.Contains(t, buf.String(), `"code":"permission_denied"`)
}
