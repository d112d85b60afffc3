package observability

import (
	"testing"

	"github.com/smallbiznis/referrals/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoggerConfigFollowsEnvironment(t *testing.T) {
	cfg := config.Config{
		AppName:     "referrals",
		AppVersion:  "1.2.3",
		Environment: "production",
		Telemetry:   config.TelemetryConfig{LogLevel: "warn", LogFormat: "console"},
	}

	got := LoggerConfig(cfg)
	assert.Equal(t, "referrals", got.ServiceName)
	assert.Equal(t, "1.2.3", got.Version)
	assert.Equal(t, "warn", got.Level)
	assert.Equal(t, "console", got.Format)
	assert.False(t, got.Debug)

	cfg.Environment = "local"
	assert.True(t, LoggerConfig(cfg).Debug)

	cfg.Environment = "production"
	cfg.Telemetry.LogLevel = "debug"
	assert.True(t, LoggerConfig(cfg).Debug)
}

func TestExporterConfigsShareEndpoint(t *testing.T) {
	cfg := config.Config{
		AppName:      "referrals",
		OTLPEndpoint: "collector:4317",
		Telemetry:    config.TelemetryConfig{OtelEnabled: true, OtelProtocol: "grpc", SamplingRatio: 0.5},
	}

	tc := tracingConfig(cfg)
	mc := metricsConfig(cfg)
	assert.True(t, tc.Enabled)
	assert.True(t, mc.Enabled)
	assert.Equal(t, "collector:4317", tc.ExporterEndpoint)
	assert.Equal(t, tc.ExporterEndpoint, mc.ExporterEndpoint)
	assert.InDelta(t, 0.5, tc.SamplingRatio, 1e-9)
}
