package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultMetricInterval = 15 * time.Second

// ShutdownFunc flushes and stops a provider.
type ShutdownFunc func(context.Context) error

// Config describes the CA server to the OTLP collector.
type Config struct {
	ServiceName string
	Version     string

	// MetricInterval is how often issuance and serial counters are exported.
	MetricInterval time.Duration
}

// InitTelemetry installs global OTLP trace and meter providers for the CA
// server. Exporters read the standard OTEL_EXPORTER_OTLP_* variables and
// OTEL_SERVICE_NAME overrides cfg.ServiceName.
//
// A provider that cannot be created is logged and skipped, so a missing
// collector never stops certificates being issued.
func InitTelemetry(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.MetricInterval == 0 {
		cfg.MetricInterval = defaultMetricInterval
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithContainer(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var shutdowns []ShutdownFunc

	if shutdown, err := initTraceProvider(ctx, res); err != nil {
		log.Warn().Err(err).Msg("tracing disabled, failed to initialize trace provider")
	} else {
		shutdowns = append(shutdowns, shutdown)
	}

	if shutdown, err := initMeterProvider(ctx, res, cfg.MetricInterval); err != nil {
		log.Warn().Err(err).Msg("metrics disabled, failed to initialize meter provider")
	} else {
		shutdowns = append(shutdowns, shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", cfg.ServiceName).
		Str("version", cfg.Version).
		Dur("metric_interval", cfg.MetricInterval).
		Msg("telemetry initialized")

	return joinShutdown(shutdowns...), nil
}

// joinShutdown runs every fn and joins their errors.
func joinShutdown(fns ...ShutdownFunc) ShutdownFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range fns {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("telemetry shutdown: %w", err)
		}
		return nil
	}
}

func initTraceProvider(ctx context.Context, res *resource.Resource) (ShutdownFunc, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func initMeterProvider(ctx context.Context, res *resource.Resource, interval time.Duration) (ShutdownFunc, error) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
