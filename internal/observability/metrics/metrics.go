package metrics

import (
	"context"
	"fmt"
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

// Metrics exposes application-level instruments.
type Metrics struct {
	eventsIngested     metric.Int64Counter
	eventWriteFailures metric.Int64Counter
	attributions       metric.Int64Counter
	linkAllocations    metric.Int64Counter
	redirects          metric.Int64Counter
	widgetSessions     metric.Int64Counter
	rateLimitAllowed   metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "referral"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
	}{
		{&m.eventsIngested, "referral_events_ingested_total"},
		{&m.eventWriteFailures, "referral_event_write_failures_total"},
		{&m.attributions, "referral_attributions_total"},
		{&m.linkAllocations, "referral_link_allocations_total"},
		{&m.redirects, "referral_redirects_total"},
		{&m.widgetSessions, "referral_widget_sessions_total"},
		{&m.rateLimitAllowed, "referral_rate_limit_allowed_total"},
		{&m.rateLimitDenied, "referral_rate_limit_denied_total"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	return m, nil
}

// RecordEventIngested counts accepted events by type.
func (m *Metrics) RecordEventIngested(ctx context.Context, productID, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_id", strings.TrimSpace(productID)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.eventsIngested.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEventWriteFailure counts Event rows lost after a committed attribution.
func (m *Metrics) RecordEventWriteFailure(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.eventWriteFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAttribution counts attribution outcomes (created, duplicate, unresolved, self).
func (m *Metrics) RecordAttribution(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.attributions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLinkAllocation counts referral link allocation outcomes.
func (m *Metrics) RecordLinkAllocation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.linkAllocations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRedirect counts redirect resolutions by status code.
func (m *Metrics) RecordRedirect(ctx context.Context, statusCode int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Int("status_code", statusCode))
	m.redirects.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWidgetSession counts widget sessions, split by new participants.
func (m *Metrics) RecordWidgetSession(ctx context.Context, productID string, newParticipant bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_id", strings.TrimSpace(productID)),
		attribute.Bool("new_participant", newParticipant),
	)
	m.widgetSessions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, productID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_id", strings.TrimSpace(productID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, productID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_id", strings.TrimSpace(productID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"product_id":      {},
	"endpoint":        {},
	"status_code":     {},
	"event_type":      {},
	"source":          {},
	"outcome":         {},
	"reason":          {},
	"new_participant": {},
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
