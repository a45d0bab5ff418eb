package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{}, "pos", "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.TelemetryConfig{Enabled: true, Exporter: config.ExporterStdout}

	shutdown, err := Init(context.Background(), cfg, "pos-terminal", "test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "checkout.Checkout")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx))

	assert.Contains(t, buf.String(), "checkout.Checkout")
	assert.Contains(t, buf.String(), "pos-terminal")
}

func TestInitOTLP(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: true, Exporter: config.ExporterOTLP, Endpoint: "127.0.0.1:4317", Insecure: true}

	shutdown, err := Init(context.Background(), cfg, "pos-terminal", "test", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
