package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type deliveryIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDeliveryID tags the context with the journal id of the webhook delivery being processed.
func WithDeliveryID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, deliveryIDKey{}, id)
}

func DeliveryIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(deliveryIDKey{}).(string); ok {
		return v
	}
	return ""
}
