package aws

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/store"
)

// DefaultTableName is used when no ledger table is configured.
const DefaultTableName = "capki_certificates"

var _ store.CertificateStore = (*CertificateStore)(nil)

// CertificateStore is a DynamoDB implementation of store.CertificateStore keyed
// by serial_number.
type CertificateStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewCertificateStore creates a new DynamoDB certificate store
func NewCertificateStore(client *dynamodb.Client, tableName string) *CertificateStore {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &CertificateStore{
		client:    client,
		tableName: tableName,
	}
}

// EnsureTable creates the ledger table with on-demand billing and enables TTL
// on the ttl attribute. An existing table is left as is.
func (s *CertificateStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("serial_number"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("serial_number"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			log.Debug().Str("table", s.tableName).Msg("ledger table exists")
			return nil
		}
		return wrapAWSError(err, "failed to create ledger table")
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)}, 2*time.Minute); err != nil {
		return wrapAWSError(err, "ledger table did not become active")
	}

	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("ttl"),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		return wrapAWSError(err, "failed to enable ledger ttl")
	}

	log.Info().Str("table", s.tableName).Msg("created ledger table")

	return nil
}

// Get retrieves certificate metadata by serial number
func (s *CertificateStore) Get(ctx context.Context, serialNumber string) (*store.CertMetadata, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"serial_number": &types.AttributeValueMemberS{Value: serialNumber},
		},
	})
	if err != nil {
		return nil, wrapAWSError(err, "failed to get certificate")
	}

	if result.Item == nil {
		return nil, store.ErrCertNotFound
	}

	var cert store.CertMetadata
	if err := attributevalue.UnmarshalMap(result.Item, &cert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal certificate: %w", err)
	}

	return &cert, nil
}

// Register stores certificate metadata
func (s *CertificateStore) Register(ctx context.Context, cert *store.CertMetadata) error {
	item, err := attributevalue.MarshalMap(cert)
	if err != nil {
		return fmt.Errorf("failed to marshal certificate: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("serial_number"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return store.ErrCertAlreadyExists
		}
		return wrapAWSError(err, "failed to register certificate")
	}

	log.Debug().
		Str("serial_number", cert.SerialNumber).
		Str("fingerprint", cert.Fingerprint).
		Msg("certificate registered")

	return nil
}

// List scans the table. Scan order is not defined by DynamoDB.
func (s *CertificateStore) List(ctx context.Context, opts store.ListCertificatesOptions) ([]*store.CertMetadata, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}
	if opts.Limit > 0 {
		input.Limit = aws.Int32(int32(min(opts.Limit, math.MaxInt32)))
	}

	certs := make([]*store.CertMetadata, 0)

	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapAWSError(err, "failed to list certificates")
		}

		for _, item := range page.Items {
			var cert store.CertMetadata
			if err := attributevalue.UnmarshalMap(item, &cert); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal certificate, skipping")
				continue
			}
			certs = append(certs, &cert)
		}

		if opts.Limit > 0 && len(certs) >= opts.Limit {
			return certs[:opts.Limit], nil
		}
	}

	return certs, nil
}
