package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()
	for _, endpoint := range []string{"", "   "} {
		shutdown, err := Setup(context.Background(), Settings{Endpoint: endpoint}, "karsaz")
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		require.NoError(t, shutdown(context.Background()))
	}
	require.Equal(t, before, otel.GetTracerProvider())
}

func TestSetupInstallsProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	// The gRPC exporter connects lazily, so no collector is needed here.
	shutdown, err := Setup(context.Background(), Settings{Endpoint: "127.0.0.1:4317", Insecure: true}, "karsaz")
	require.NoError(t, err)
	_, ok := otel.GetTracerProvider().(*trace.TracerProvider)
	require.True(t, ok, "expected sdk tracer provider to be installed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
