//go:build integration

package aws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/capki/internal/store"
)

const (
	testDynamoDBEndpoint = "http://localhost:4566"
	testDynamoDBRegion   = "us-east-1"
)

// getDynamoDBClient creates a DynamoDB client pointed at LocalStack
func getDynamoDBClient(t *testing.T, ctx context.Context) *dynamodb.Client {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(testDynamoDBRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
	)
	require.NoError(t, err)

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(testDynamoDBEndpoint)
	})
}

func newIntegrationStore(t *testing.T) *CertificateStore {
	t.Helper()

	ctx := context.Background()
	client := getDynamoDBClient(t, ctx)
	tableName := "capki-test-" + uuid.NewString()

	s := NewCertificateStore(client, tableName)
	require.NoError(t, s.EnsureTable(ctx))
	// second call must be a no-op
	require.NoError(t, s.EnsureTable(ctx))

	t.Cleanup(func() {
		_, _ = client.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{TableName: aws.String(tableName)})
	})

	return s
}

func testMetadata(serial string) *store.CertMetadata {
	now := time.Now().UTC().Truncate(time.Second)
	return &store.CertMetadata{
		SerialNumber: serial,
		SubjectDN:    "CN=demo",
		CommonName:   "demo",
		Fingerprint:  "fp-" + serial,
		IssuedAt:     now,
		ExpiresAt:    now.Add(5 * 365 * 24 * time.Hour),
		TTL:          now.Add(6 * 365 * 24 * time.Hour).Unix(),
	}
}

func TestIntegration_CertificateStore(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t)

	t.Run("register and get", func(t *testing.T) {
		cert := testMetadata("1")
		require.NoError(t, s.Register(ctx, cert))

		got, err := s.Get(ctx, "1")
		require.NoError(t, err)
		require.Equal(t, cert.SubjectDN, got.SubjectDN)
		require.Equal(t, cert.Fingerprint, got.Fingerprint)
		require.True(t, cert.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("duplicate serial", func(t *testing.T) {
		err := s.Register(ctx, testMetadata("1"))
		require.ErrorIs(t, err, store.ErrCertAlreadyExists)
	})

	t.Run("missing serial", func(t *testing.T) {
		_, err := s.Get(ctx, "999")
		require.ErrorIs(t, err, store.ErrCertNotFound)
	})

	t.Run("list with limit", func(t *testing.T) {
		for i := 2; i <= 5; i++ {
			require.NoError(t, s.Register(ctx, testMetadata(fmt.Sprint(i))))
		}

		all, err := s.List(ctx, store.ListCertificatesOptions{})
		require.NoError(t, err)
		require.Len(t, all, 5)

		limited, err := s.List(ctx, store.ListCertificatesOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
	})
}
