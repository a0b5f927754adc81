package commands

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/capki/internal/store"
	awsstore "github.com/wolfeidau/capki/internal/store/aws"
	k8sstore "github.com/wolfeidau/capki/internal/store/kubernetes"
	"github.com/wolfeidau/capki/internal/store/local"
	memorystore "github.com/wolfeidau/capki/internal/store/memory"
	postgresstore "github.com/wolfeidau/capki/internal/store/postgres"
)

const (
	storeKubernetes = "kubernetes"
	storeLocal      = "local"
	storeMemory     = "memory"

	ledgerNone     = "none"
	ledgerMemory   = "memory"
	ledgerDynamoDB = "dynamodb"
	ledgerPostgres = "postgres"
)

// PostgresLedgerFlags configures the postgres ledger.
type PostgresLedgerFlags struct {
	ConnString      string        `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
	MaxConns        int32         `help:"maximum number of connections in pool" default:"4"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"0"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	AutoMigrate     bool          `help:"run database migrations on startup" default:"false" env:"CAPKI_POSTGRES_AUTO_MIGRATE"`
}

// storeType resolves --local and --store into one backend name.
func (c *ServerCmd) storeType() string {
	if c.Local {
		return storeLocal
	}
	return c.Store
}

// newBackend builds the storage backend holding the CA key, certificate and counter.
func (c *ServerCmd) newBackend(log zerolog.Logger) (store.Backend, error) {
	switch c.storeType() {
	case storeLocal:
		log.Info().Str("dir", c.LocalDir).Msg("using local filesystem backend")
		return local.NewBackend(c.LocalDir), nil

	case storeMemory:
		log.Warn().Msg("using in-memory backend, the CA is lost on restart")
		return memorystore.NewBackend(c.SecretName), nil

	case storeKubernetes:
		client, clientConfig, err := k8sstore.NewClient()
		if err != nil {
			return nil, err
		}

		namespace := c.Namespace
		if namespace == "" {
			namespace = k8sstore.NewNamespaceResolver(clientConfig).Resolve()
		}

		log.Info().Str("namespace", namespace).Str("secret", c.SecretName).Msg("using kubernetes secret backend")
		return k8sstore.NewBackend(client, namespace, c.SecretName), nil

	default:
		return nil, fmt.Errorf("unknown store type %q", c.Store)
	}
}

// newLedger builds the optional issued-certificate ledger. The returned
// close function is never nil.
func (c *ServerCmd) newLedger(ctx context.Context, log zerolog.Logger) (store.CertificateStore, func(), error) {
	noop := func() {}

	switch c.Ledger {
	case ledgerNone, "":
		return nil, noop, nil

	case ledgerMemory:
		log.Info().Msg("using in-memory certificate ledger")
		return memorystore.NewCertificateStore(), noop, nil

	case ledgerDynamoDB:
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load AWS config: %w", err)
		}

		ledger := awsstore.NewCertificateStore(dynamodb.NewFromConfig(cfg), c.DynamoDBTable)
		if c.DynamoDBCreateTable {
			if err := ledger.EnsureTable(ctx); err != nil {
				return nil, noop, err
			}
		}

		log.Info().Str("table", c.DynamoDBTable).Msg("using dynamodb certificate ledger")
		return ledger, noop, nil

	case ledgerPostgres:
		ledger, err := postgresstore.NewCertificateStore(ctx, &postgresstore.PoolConfig{
			ConnString:      c.Postgres.ConnString,
			MaxConns:        c.Postgres.MaxConns,
			MinConns:        c.Postgres.MinConns,
			MaxConnLifetime: c.Postgres.MaxConnLifetime,
			MaxConnIdleTime: c.Postgres.MaxConnIdleTime,
			AutoMigrate:     c.Postgres.AutoMigrate,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create postgres ledger: %w", err)
		}

		log.Info().Bool("auto_migrate", c.Postgres.AutoMigrate).Msg("using postgres certificate ledger")
		return ledger, ledger.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown ledger type %q", c.Ledger)
	}
}
