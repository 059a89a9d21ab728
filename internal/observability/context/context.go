// Package context carries request correlation values used by logging and tracing.
package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}
type productIDKey struct{}
type actorKey struct{}

type actor struct {
	Type string
	ID   string
}

// WithRequestID stores the request id on the context.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

// RequestIDFromContext returns the request id, or "" when absent.
func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithProductID stores the product id for log enrichment.
func WithProductID(ctx stdcontext.Context, productID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, productIDKey{}, strings.TrimSpace(productID))
}

// ProductIDFromContext returns the product id, or "" when absent.
func ProductIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(productIDKey{}).(string)
	return value
}

// WithActor stores the authenticated actor (api_key, widget_user).
func WithActor(ctx stdcontext.Context, actorType, actorID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, actorKey{}, actor{
		Type: strings.TrimSpace(actorType),
		ID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the actor type and id.
func ActorFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.Type, value.ID
}
