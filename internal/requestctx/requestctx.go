// Package requestctx carries per-request values shared by the HTTP layer and
// the services it calls.
package requestctx

import "context"

type correlationKey struct{}

// WithCorrelationID returns a copy of ctx carrying the request's correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id of the request, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
