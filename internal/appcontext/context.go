package appcontext

import (
	"context"
)

type EXECUTION_CONTEXT string

var (
	ExecutionKey  EXECUTION_CONTEXT = "executionKey"
	CorrelationId EXECUTION_CONTEXT = "correlationId"
)

// WithExecutionKey marks ctx with the key of one engine mutation (commit, update, create)
func WithExecutionKey(ctx context.Context, key int64) context.Context {
	return context.WithValue(ctx, ExecutionKey, key)
}

func GetExecutionKey(ctx context.Context) (int64, bool) {
	executionContextKey, ok := ctx.Value(ExecutionKey).(int64)
	if !ok {
		return 0, false
	}
	return executionContextKey, true
}

// WithCorrelationId stores the id of the incoming request
func WithCorrelationId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationId, id)
}

func GetCorrelationId(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CorrelationId).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
