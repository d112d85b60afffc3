package observability

import (
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/observability/logger"
	"github.com/smallbiznis/referrals/internal/observability/metrics"
	"github.com/smallbiznis/referrals/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoggerConfig,
		logger.New,
		tracingConfig,
		tracing.NewProvider,
		metricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

// LoggerConfig is shared by the server and the one-shot CLI commands.
func LoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Level:       cfg.Telemetry.LogLevel,
		Format:      cfg.Telemetry.LogFormat,
		Debug:       cfg.IsDevelopment(),
	}
}

func tracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Telemetry.OtelEnabled,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OTLPEndpoint,
		ExporterProtocol: cfg.Telemetry.OtelProtocol,
		SamplingRatio:    cfg.Telemetry.SamplingRatio,
	}
}

func metricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Telemetry.OtelEnabled,
		ExporterEndpoint: cfg.OTLPEndpoint,
		ExporterProtocol: cfg.Telemetry.OtelProtocol,
		ServiceName:      cfg.AppName,
		Environment:      cfg.Environment,
	}
}
