package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidgate/internal/config"
)

func TestInitializeOTel_MetricsServedOnPrivateRegistry(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	providers, err := InitializeOTel(config.TelemetryConfig{
		ServiceName:    "vidgate-test",
		Environment:    "test",
		MetricsEnabled: true,
	}, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := NewHTTPMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RequestsTotal.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Nil(t, providers.TracerProvider)
}

func TestNoopProviders(t *testing.T) {
	providers := NoopProviders(slog.Default())

	_, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()
	_, err := NewHTTPMetrics(providers.Meter)
	assert.NoError(t, err)
	assert.NoError(t, providers.Shutdown(context.Background()))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
