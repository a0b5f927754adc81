package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/api/pkiv1connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Config holds common client configuration. Empty ServerURL and Timeout fall
// back to DefaultConfig.
type Config struct {
	ServerURL string
	Timeout   time.Duration
	APIKey    string
	// Debug logs every call through the global zerolog logger.
	Debug bool
}

// Client calls the PKI service.
type Client struct {
	PKI pkiv1connect.PKIServiceClient
}

// New creates a client with the given configuration. When APIKey is set it is
// sent as the raw Authorization header on every call.
func New(config Config, opts ...connect.ClientOption) *Client {
	defaults := DefaultConfig()
	if config.ServerURL == "" {
		config.ServerURL = defaults.ServerURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	if config.APIKey != "" {
		opts = append(opts, connect.WithInterceptors(NewAPIKeyInterceptor(config.APIKey)))
	}
	if config.Debug {
		opts = append(opts, connect.WithInterceptors(NewDebugInterceptor(log.Logger)))
	}

	return &Client{
		PKI: pkiv1connect.NewPKIServiceClient(httpClient, config.ServerURL, opts...),
	}
}

// GetCA returns the CA certificate PEM.
func (c *Client) GetCA(ctx context.Context) ([]byte, error) {
	resp, err := c.PKI.GetCA(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, fmt.Errorf("failed to get CA certificate: %w", err)
	}
	return resp.Msg.GetValue(), nil
}

// IssueCertificate submits a PEM CSR and returns the signed certificate PEM.
func (c *Client) IssueCertificate(ctx context.Context, csrPEM []byte) ([]byte, error) {
	resp, err := c.PKI.IssueCertificate(ctx, connect.NewRequest(wrapperspb.Bytes(csrPEM)))
	if err != nil {
		return nil, fmt.Errorf("failed to issue certificate: %w", err)
	}
	return resp.Msg.GetValue(), nil
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
	}
}
