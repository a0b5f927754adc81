package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"connectrpc.com/otelconnect"
	"github.com/rs/cors"
	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/auth"
	"github.com/wolfeidau/capki/internal/logger"
	"github.com/wolfeidau/capki/internal/pki"
	"github.com/wolfeidau/capki/internal/server"
	"github.com/wolfeidau/capki/internal/ssmparams"
	"github.com/wolfeidau/capki/internal/telemetry"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const shutdownTimeout = 10 * time.Second

type ServerCmd struct {
	// Server configuration
	Listen      string   `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"CAPKI_LISTEN"`
	CORSOrigins []string `help:"allowed CORS origins for API requests" env:"CAPKI_CORS_ORIGINS"`

	// TLS, plain HTTP/2 (h2c) is served when no key pair is configured
	TLSCert    string `help:"path to TLS cert file" env:"CAPKI_TLS_CERT"`
	TLSKey     string `help:"path to TLS key file" env:"CAPKI_TLS_KEY"`
	TLSCertSSM string `help:"SSM parameter holding the TLS cert" env:"CAPKI_TLS_CERT_SSM"`
	TLSKeySSM  string `help:"SSM parameter holding the TLS key" env:"CAPKI_TLS_KEY_SSM"`

	// Authorization
	APIKey    string `help:"shared secret required in the Authorization header, empty allows all callers" env:"CAPKI_API_KEY"`
	APIKeySSM string `help:"SSM parameter holding the shared secret, overrides --api-key" env:"CAPKI_API_KEY_SSM"`

	// CA storage
	Local       bool   `help:"store the CA on the local filesystem instead of a kubernetes secret" default:"false" env:"CAPKI_LOCAL"`
	Store       string `help:"CA storage backend" default:"kubernetes" enum:"kubernetes,local,memory" env:"CAPKI_STORE"`
	LocalDir    string `help:"root directory for the local backend" default:"./ca" env:"CAPKI_LOCAL_DIR"`
	SecretName  string `help:"name of the kubernetes secret holding the CA" default:"capki-ca" env:"CAPKI_SECRET_NAME"`
	Namespace   string `help:"kubernetes namespace, resolved from kubeconfig or the pod when empty" env:"CAPKI_NAMESPACE"`
	ServiceName string `help:"service name used in the CA subject" default:"capki" env:"CAPKI_SERVICE_NAME"`

	// Issued-certificate ledger
	Ledger              string              `help:"issued certificate ledger" default:"none" enum:"none,memory,dynamodb,postgres" env:"CAPKI_LEDGER"`
	DynamoDBTable       string              `help:"dynamodb ledger table" default:"capki_certificates" env:"CAPKI_DYNAMODB_TABLE"`
	DynamoDBCreateTable bool                `help:"create the dynamodb ledger table on startup" default:"false" env:"CAPKI_DYNAMODB_CREATE_TABLE"`
	Postgres            PostgresLedgerFlags `embed:"" prefix:"postgres-"`

	Tracing bool `help:"enable tracing" default:"false" env:"CAPKI_TRACING"`
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zlog.Logger = log

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	secrets, err := ssmparams.NewLoader(nil).Load(ctx, ssmparams.Config{
		APIKey:      c.APIKey,
		APIKeySSM:   c.APIKeySSM,
		TLSCertPath: c.TLSCert,
		TLSKeyPath:  c.TLSKey,
		TLSCertSSM:  c.TLSCertSSM,
		TLSKeySSM:   c.TLSKeySSM,
	})
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	interceptors := []connect.Interceptor{logger.NewConnectRequests(log)}
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{ServiceName: "capki-server", Version: globals.Version})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	backend, err := c.newBackend(log)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}

	// the service never starts without a usable CA
	authority, err := pki.Bootstrap(ctx, backend, pki.WithServiceName(c.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to bootstrap CA: %w", err)
	}

	ledger, closeLedger, err := c.newLedger(ctx, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	issuer := pki.NewIssuer(authority, pki.NewSerialAllocator(backend))
	pkiServer := server.NewPKIServer(authority, issuer)
	if ledger != nil {
		pkiServer = pkiServer.WithLedger(ledger)
	}

	if secrets.APIKey == "" {
		log.Warn().Msg("No API key configured, every caller may issue certificates")
	}
	authz := auth.NewAuthorizer(secrets.APIKey)

	handler := server.NewServer(pkiServer, authz, log).Handler(interceptors...)
	if len(c.CORSOrigins) > 0 {
		handler = withCORS(c.CORSOrigins, handler)
	}

	var srv *http.Server
	if secrets.HasTLS() {
		tlsConfig, err := secrets.TLSConfig()
		if err != nil {
			return err
		}
		srv = configureHTTPServer(c.Listen, handler)
		srv.TLSConfig = tlsConfig
	} else {
		srv = configureHTTPServer(c.Listen, h2c.NewHandler(handler, &http2.Server{}))
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", secrets.HasTLS()).Bool("auth", secrets.APIKey != "").Msg("Starting HTTP server")
		if secrets.HasTLS() {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), auth.CredentialHeader),
		ExposedHeaders: append(connectcors.ExposedHeaders(), logger.RequestIDHeader),
	})
	return middleware.Handler(h)
}
