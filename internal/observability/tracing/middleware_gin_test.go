package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/referral/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedEngine(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	engine := gin.New()
	engine.Use(GinMiddleware())
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/r/:code", func(c *gin.Context) {
		ctx := obscontext.WithProductID(c.Request.Context(), "101")
		c.Request = c.Request.WithContext(ctx)
		c.Status(http.StatusTemporaryRedirect)
	})
	return engine, recorder
}

func TestGinMiddlewareSkipsHealthChecks(t *testing.T) {
	engine, recorder := newTracedEngine(t)

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, recorder.Ended())
}

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	engine, recorder := newTracedEngine(t)

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/r/abc2345", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /r/:code", spans[0].Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "101", attrs["referral.product_id"].AsString())
	assert.Equal(t, "abc2345", attrs["referral.code"].AsString())
	assert.Equal(t, int64(http.StatusTemporaryRedirect), attrs["http.status_code"].AsInt64())
}
