package sessionguard

import (
	"context"

	"github.com/google/uuid"
)

type correlationIDContextKey struct{}

// WithCorrelationID attaches an id that is copied onto log lines and audit
// events produced while serving ctx. Login generates one when absent.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey{}, id)
}

// CorrelationIDFromContext returns the id set by WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(correlationIDContextKey{}).(string)
	return id, id != ""
}

func ensureCorrelationID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := CorrelationIDFromContext(ctx); ok {
		return ctx
	}
	return WithCorrelationID(ctx, uuid.NewString())
}
