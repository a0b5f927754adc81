package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinShutdown(t *testing.T) {
	t.Run("no providers", func(t *testing.T) {
		require.NoError(t, joinShutdown()(context.Background()))
	})

	t.Run("runs every provider and joins errors", func(t *testing.T) {
		traceErr := errors.New("trace exporter unreachable")
		metricErr := errors.New("metric exporter unreachable")

		var calls int
		shutdown := joinShutdown(
			func(context.Context) error { calls++; return traceErr },
			func(context.Context) error { calls++; return nil },
			func(context.Context) error { calls++; return metricErr },
		)

		err := shutdown(context.Background())
		require.Equal(t, 3, calls)
		require.ErrorIs(t, err, traceErr)
		require.ErrorIs(t, err, metricErr)
	})
}
