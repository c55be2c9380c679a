// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// ActorKey is the context key for actor ID.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// CorrelationKey is the context key for the correlation ID stamped on events.
type CorrelationKey struct{}

// WithActorID returns a context with the actor ID embedded.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}

// WithCorrelationID returns a context whose appended events share correlationID.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationKey{}, correlationID)
}

// CorrelationFromContext returns the correlation ID from context, or empty string if not set.
func CorrelationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CorrelationKey{}).(string); ok {
		return v
	}
	return ""
}
