package productcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ProductContextKey is the request context key for the authenticated product ID.
type ProductContextKey struct{}

// WithProductID stores the product ID in the context.
func WithProductID(ctx context.Context, productID snowflake.ID) context.Context {
	return context.WithValue(ctx, ProductContextKey{}, productID)
}

// ProductIDFromContext returns the product ID from context, if set.
func ProductIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(ProductContextKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}
