package telemetry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) { //nolint:paralleltest // Uses t.Setenv
	unsetenv(t, "OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION", "OTEL_EXPORT_LOGS",
		"OTEL_EXPORTER_OTLP_TRACES_TIMEOUT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
		"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "KUBERNETES_SERVICE_HOST")

	cfg, err := LoadConfig("nestfsm")
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "nestfsm", cfg.ServiceName)
	assert.Equal(t, "1.0.0", cfg.ServiceVersion)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.ExportLogs)
	assert.Empty(t, cfg.Endpoint)
	assert.Empty(t, cfg.LogsEndpoint)
}

// unsetenv removes keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigEndpoints(t *testing.T) { //nolint:paralleltest // Uses t.Setenv
	tests := []struct {
		name           string
		kubernetesHost string
		traces         string
		logs           string
		expectedTraces string
		expectedLogs   string
	}{
		{
			name:           "kubernetes default",
			kubernetesHost: "10.0.0.1",
			expectedTraces: defaultCollectorEndpoint,
			expectedLogs:   defaultCollectorEndpoint,
		},
		{
			name:           "custom endpoint overrides kubernetes default",
			kubernetesHost: "10.0.0.1",
			traces:         "http://collector:4318",
			expectedTraces: "http://collector:4318",
			expectedLogs:   "http://collector:4318",
		},
		{
			name:           "separate logs endpoint",
			traces:         "http://collector:4318/v1/traces",
			logs:           "http://collector:4318/v1/logs",
			expectedTraces: "http://collector:4318/v1/traces",
			expectedLogs:   "http://collector:4318/v1/logs",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("KUBERNETES_SERVICE_HOST", test.kubernetesHost)
			t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", test.traces)
			t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", test.logs)

			cfg, err := LoadConfig("nestfsm")
			require.NoError(t, err)
			assert.Equal(t, test.expectedTraces, cfg.Endpoint)
			assert.Equal(t, test.expectedLogs, cfg.LogsEndpoint)
		})
	}
}

func TestLoadConfigInvalid(t *testing.T) { //nolint:paralleltest // Uses t.Setenv
	t.Setenv("OTEL_ENABLED", "maybe")

	_, err := LoadConfig("nestfsm")
	require.Error(t, err)
}

func TestInitializeDisabled(t *testing.T) { //nolint:paralleltest // Modifies global providers
	require.NoError(t, Initialize(context.Background(), &Config{Enabled: false}))
	assert.Nil(t, LogHandler("nestfsm"))
	require.NoError(t, Shutdown(context.Background()))

	require.NoError(t, Initialize(context.Background(), &Config{Enabled: true}))
	assert.Nil(t, LogHandler("nestfsm"))
}

func TestInitializeEnabled(t *testing.T) { //nolint:paralleltest // Modifies global providers
	cfg := &Config{
		Enabled:        true,
		ServiceName:    "nestfsm-test",
		ServiceVersion: "test",
		Environment:    "test",
		Endpoint:       "http://127.0.0.1:4318/v1/traces",
		LogsEndpoint:   "http://127.0.0.1:4318/v1/logs",
		ExportLogs:     true,
		Timeout:        100 * time.Millisecond,
	}

	require.NoError(t, Initialize(context.Background(), cfg))

	handler := LogHandler("nestfsm-test")
	require.NotNil(t, handler)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Nothing was recorded, so the flush does not reach the collector.
	require.NoError(t, Shutdown(ctx))
	assert.Nil(t, LogHandler("nestfsm-test"))
}
