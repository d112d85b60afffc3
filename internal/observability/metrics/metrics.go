package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the referral domain instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	signups            metric.Int64Counter
	upgrades           metric.Int64Counter
	commissionEntries  metric.Int64Counter
	commissionFailures metric.Int64Counter
	invitations        metric.Int64Counter
	signatureRejected  metric.Int64Counter
	webhookThrottled   metric.Int64Counter
	maintenanceRuns    metric.Int64Counter
	maintenanceRows    metric.Int64Counter
	maintenanceLatency metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "referrals"
	}
	meter := provider.Meter(name)

	signups, err := meter.Int64Counter("referrals_signups_total",
		metric.WithDescription("Customer signup events by outcome."))
	if err != nil {
		return nil, err
	}
	upgrades, err := meter.Int64Counter("referrals_upgrades_total",
		metric.WithDescription("Partner upgrade events by outcome."))
	if err != nil {
		return nil, err
	}
	commissionEntries, err := meter.Int64Counter("referrals_commission_entries_total",
		metric.WithDescription("Commission ledger entries written."))
	if err != nil {
		return nil, err
	}
	commissionFailures, err := meter.Int64Counter("referrals_commission_failures_total",
		metric.WithDescription("Commission ledger entries that could not be written."))
	if err != nil {
		return nil, err
	}
	invitations, err := meter.Int64Counter("referrals_invitations_total",
		metric.WithDescription("Partner invitation attempts by provider and outcome."))
	if err != nil {
		return nil, err
	}
	signatureRejected, err := meter.Int64Counter("referrals_signature_rejected_total",
		metric.WithDescription("Webhook deliveries rejected for a bad signature."))
	if err != nil {
		return nil, err
	}
	webhookThrottled, err := meter.Int64Counter("referrals_webhook_throttled_total",
		metric.WithDescription("Webhook deliveries refused by the ingress rate limiter."))
	if err != nil {
		return nil, err
	}
	maintenanceRuns, err := meter.Int64Counter("referrals_maintenance_job_runs_total",
		metric.WithDescription("Delivery journal maintenance job runs by outcome."))
	if err != nil {
		return nil, err
	}
	maintenanceRows, err := meter.Int64Counter("referrals_maintenance_rows_total",
		metric.WithDescription("Journal rows touched by maintenance jobs."))
	if err != nil {
		return nil, err
	}
	maintenanceLatency, err := meter.Float64Histogram("referrals_maintenance_job_duration_seconds",
		metric.WithDescription("Maintenance job duration."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		signups:            signups,
		upgrades:           upgrades,
		commissionEntries:  commissionEntries,
		commissionFailures: commissionFailures,
		invitations:        invitations,
		signatureRejected:  signatureRejected,
		webhookThrottled:   webhookThrottled,
		maintenanceRuns:    maintenanceRuns,
		maintenanceRows:    maintenanceRows,
		maintenanceLatency: maintenanceLatency,
	}, nil
}

func (m *Metrics) RecordSignup(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.signups.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordUpgrade(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.upgrades.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordCommissionEntry(ctx context.Context, feeType string, level int) {
	if m == nil {
		return
	}
	m.commissionEntries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("fee_type", strings.TrimSpace(feeType)),
		attribute.String("level", strconv.Itoa(level)),
	)...))
}

func (m *Metrics) RecordCommissionFailure(ctx context.Context, feeType string, level int) {
	if m == nil {
		return
	}
	m.commissionFailures.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("fee_type", strings.TrimSpace(feeType)),
		attribute.String("level", strconv.Itoa(level)),
	)...))
}

func (m *Metrics) RecordInvitation(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.invitations.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordSignatureRejected(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.signatureRejected.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)...))
}

func (m *Metrics) RecordWebhookThrottled(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.webhookThrottled.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)...))
}

// RecordMaintenanceJob records one scheduler job run and the rows it touched.
func (m *Metrics) RecordMaintenanceJob(ctx context.Context, job, outcome string, rows int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("job", strings.TrimSpace(job)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...)
	m.maintenanceRuns.Add(ctx, 1, attrs)
	if rows > 0 {
		m.maintenanceRows.Add(ctx, rows, attrs)
	}
	m.maintenanceLatency.Record(ctx, elapsed.Seconds(), attrs)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Emails and account ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":     {},
	"fee_type":    {},
	"level":       {},
	"provider":    {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
	"job":         {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
