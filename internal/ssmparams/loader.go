// Package ssmparams loads the server's secrets from local files or AWS SSM
// Parameter Store.
package ssmparams

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParameterGetter is the subset of the SSM client used by the loader.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Secrets holds the loaded values in memory.
type Secrets struct {
	APIKey  string
	TLSCert []byte
	TLSKey  []byte
}

// Config names where each secret comes from. An SSM name takes precedence
// over the inline value or file path for the same secret.
type Config struct {
	APIKey    string
	APIKeySSM string

	TLSCertPath string
	TLSKeyPath  string
	TLSCertSSM  string
	TLSKeySSM   string
}

func (c Config) usesSSM() bool {
	return c.APIKeySSM != "" || c.TLSCertSSM != "" || c.TLSKeySSM != ""
}

// Loader resolves a Config into Secrets.
type Loader struct {
	client ParameterGetter
}

// NewLoader creates a loader. A nil client is replaced by one built from the
// default AWS configuration the first time an SSM parameter is needed.
func NewLoader(client ParameterGetter) *Loader {
	return &Loader{client: client}
}

// Load reads every configured secret.
func (l *Loader) Load(ctx context.Context, cfg Config) (*Secrets, error) {
	if cfg.usesSSM() && l.client == nil {
		awsConfig, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		l.client = ssm.NewFromConfig(awsConfig)
	}

	secrets := &Secrets{APIKey: cfg.APIKey}

	if cfg.APIKeySSM != "" {
		apiKey, err := l.getParameter(ctx, cfg.APIKeySSM)
		if err != nil {
			return nil, fmt.Errorf("failed to load api key from SSM: %w", err)
		}
		secrets.APIKey = strings.TrimSpace(apiKey)
	}

	var err error
	secrets.TLSCert, err = l.loadValue(ctx, cfg.TLSCertSSM, cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	secrets.TLSKey, err = l.loadValue(ctx, cfg.TLSKeySSM, cfg.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key: %w", err)
	}

	if (secrets.TLSCert == nil) != (secrets.TLSKey == nil) {
		return nil, errors.New("TLS certificate and key must be configured together")
	}

	return secrets, nil
}

func (l *Loader) loadValue(ctx context.Context, ssmName, path string) ([]byte, error) {
	switch {
	case ssmName != "":
		value, err := l.getParameter(ctx, ssmName)
		if err != nil {
			return nil, err
		}
		return []byte(value), nil
	case path != "":
		return os.ReadFile(path)
	default:
		return nil, nil
	}
}

func (l *Loader) getParameter(ctx context.Context, name string) (string, error) {
	output, err := l.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}

	log.Debug().Str("parameter", name).Msg("loaded parameter from SSM")

	return *output.Parameter.Value, nil
}

// HasTLS reports whether a server key pair was loaded.
func (s *Secrets) HasTLS() bool {
	return len(s.TLSCert) > 0 && len(s.TLSKey) > 0
}

// TLSConfig creates a server tls.Config from the loaded key pair.
func (s *Secrets) TLSConfig() (*tls.Config, error) {
	serverCert, err := tls.X509KeyPair(s.TLSCert, s.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2", "http/1.1"},
	}, nil
}
