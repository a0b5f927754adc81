package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/capki"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Issuance metrics
	CertificatesIssuedTotal metric.Int64Counter
	IssueErrorsTotal        metric.Int64Counter
	IssueDuration           metric.Float64Histogram

	// Serial counter metrics
	SerialAllocationsTotal metric.Int64Counter
	SecretConflictsTotal   metric.Int64Counter

	// Authorization metrics
	AuthDeniedTotal metric.Int64Counter

	// Ledger metrics
	LedgerErrorsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.CertificatesIssuedTotal, _ = meter.Int64Counter(
		"capki.certificates.issued.total",
		metric.WithDescription("Total number of leaf certificates issued"),
		metric.WithUnit("{certificate}"),
	)

	m.IssueErrorsTotal, _ = meter.Int64Counter(
		"capki.certificates.issue.errors.total",
		metric.WithDescription("Total number of failed issuance attempts"),
		metric.WithUnit("{error}"),
	)

	m.IssueDuration, _ = meter.Float64Histogram(
		"capki.issue.duration",
		metric.WithDescription("Duration of CSR signing including serial allocation"),
		metric.WithUnit("ms"),
	)

	m.SerialAllocationsTotal, _ = meter.Int64Counter(
		"capki.serial.allocations.total",
		metric.WithDescription("Total number of serial numbers allocated"),
		metric.WithUnit("{serial}"),
	)

	m.SecretConflictsTotal, _ = meter.Int64Counter(
		"capki.kubernetes.secret_conflicts.total",
		metric.WithDescription("Total number of Secret replace conflicts that were retried"),
		metric.WithUnit("{conflict}"),
	)

	m.AuthDeniedTotal, _ = meter.Int64Counter(
		"capki.auth.denied.total",
		metric.WithDescription("Total number of calls rejected by the authorizer"),
		metric.WithUnit("{call}"),
	)

	m.LedgerErrorsTotal, _ = meter.Int64Counter(
		"capki.ledger.errors.total",
		metric.WithDescription("Total number of issued certificates that could not be recorded"),
		metric.WithUnit("{error}"),
	)

	return m
}
