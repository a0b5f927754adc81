package aws

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfeidau/capki/internal/store"
)

// ErrThrottled is returned when DynamoDB rejects a call for capacity reasons.
var ErrThrottled = errors.New("request throttled")

// wrapAWSError wraps AWS SDK errors in store.ErrStorage, additionally marking
// throttling errors with ErrThrottled.
func wrapAWSError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var provisionedErr *types.ProvisionedThroughputExceededException
	if errors.As(err, &provisionedErr) {
		return store.StorageError(fmt.Errorf("%w: %w", ErrThrottled, err), msg)
	}

	// not every throttling response is typed
	errMsg := err.Error()
	if strings.Contains(errMsg, "ThrottlingException") ||
		strings.Contains(errMsg, "RequestLimitExceeded") ||
		strings.Contains(errMsg, "TooManyRequestsException") {
		return store.StorageError(fmt.Errorf("%w: %w", ErrThrottled, err), msg)
	}

	return store.StorageError(err, msg)
}
