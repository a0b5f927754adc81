package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.Same(t, m, GetMetrics())

	require.NotNil(t, m.CertificatesIssuedTotal)
	require.NotNil(t, m.IssueErrorsTotal)
	require.NotNil(t, m.IssueDuration)
	require.NotNil(t, m.SerialAllocationsTotal)
	require.NotNil(t, m.SecretConflictsTotal)
	require.NotNil(t, m.AuthDeniedTotal)
	require.NotNil(t, m.LedgerErrorsTotal)

	// the global no-op provider accepts measurements
	m.CertificatesIssuedTotal.Add(context.Background(), 1)
	m.IssueDuration.Record(context.Background(), 1.5)
}
