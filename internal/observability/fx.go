package observability

import (
	"github.com/smallbiznis/referral/internal/observability/logger"
	"github.com/smallbiznis/referral/internal/observability/metrics"
	"github.com/smallbiznis/referral/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		logger.New,
		Config.TracingConfig,
		tracing.NewProvider,
		Config.MetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.DefaultRegisterer,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(ensureTracingProvider),
)

// The tracer provider has no consumer in the graph; invoking it installs the
// global propagator and exporter.
func ensureTracingProvider(_ *sdktrace.TracerProvider) {}
