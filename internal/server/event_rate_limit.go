package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/referral/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/referral/internal/observability/metrics"
	"github.com/smallbiznis/referral/internal/productcontext"
	"github.com/smallbiznis/referral/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonProductRate = "product-rate"

// EventIngestRateLimit applies the per-product token bucket to event
// ingestion. It runs after APIKeyRequired so the product is known.
func (s *Server) EventIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.eventLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		productID, ok := productcontext.ProductIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrProductRequired)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.eventLimiter.AllowProduct(ctx, productID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("event ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyEventIngestRateLimit(c, endpoint, productID.String(), result, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, productID.String(), s.obsMetrics)
		c.Next()
	}
}

func denyEventIngestRateLimit(c *gin.Context, endpoint, productID string, result *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("event ingest rate limit exceeded",
		zap.String("reason", rateLimitReasonProductRate),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, productID, rateLimitReasonProductRate, metrics)

	c.Header("Retry-After", retryAfterSeconds(result))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonProductRate)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(result *ratelimit.RateLimitResult) string {
	if result == nil || result.RetryAfter <= 0 {
		return "1"
	}
	seconds := int(math.Ceil(result.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func recordRateLimitAllowed(ctx context.Context, endpoint, productID string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, productID, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, productID, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, productID, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
