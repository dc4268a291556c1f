package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())

	cfg = &Config{ServiceName: "svc", ServiceVersion: "v1.2.3", Endpoint: "otel:4318"}
	assert.Equal(t, "svc", cfg.GetServiceName())
	assert.Equal(t, "v1.2.3", cfg.GetServiceVersion())
	assert.Equal(t, "otel:4318", cfg.GetEndpoint())
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   *TracingConfig
		expected float64
	}{
		{name: "nil config", config: nil, expected: DefaultSampling},
		{name: "unset sampling", config: &TracingConfig{Enabled: true}, expected: DefaultSampling},
		{name: "explicit zero", config: &TracingConfig{Sampling: floatPtr(0)}, expected: 0},
		{name: "explicit ratio", config: &TracingConfig{Sampling: floatPtr(0.25)}, expected: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.config.GetSampling())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      *Config
		errContains string
	}{
		{name: "nil config", config: nil},
		{name: "disabled config ignores bad sampling", config: &Config{
			Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(3)},
		}},
		{name: "enabled without sections", config: &Config{Enabled: true}},
		{name: "disabled tracing ignores bad sampling", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Sampling: floatPtr(-1)},
		}},
		{name: "valid sampling", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(1)},
			Metrics: &MetricsConfig{Enabled: true},
		}},
		{name: "sampling above one", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(1.5)},
		}, errContains: "tracing: sampling must be between 0.0 and 1.0"},
		{name: "negative sampling", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(-0.1)},
		}, errContains: "sampling must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
		})
	}
}
