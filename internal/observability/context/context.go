// Package context carries request-scoped correlation values.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}

type unitKey struct{}

// WithRequestID stores the request identifier on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
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

// WithUnit stores the EGS unit being processed on ctx.
func WithUnit(ctx context.Context, unit string) context.Context {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return ctx
	}
	return context.WithValue(ctx, unitKey{}, unit)
}

func UnitFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(unitKey{}).(string); ok {
		return v
	}
	return ""
}
