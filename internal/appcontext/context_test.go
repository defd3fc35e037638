package appcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionKey(t *testing.T) {
	ctx := WithExecutionKey(context.Background(), 42)

	valFromCtx, found := GetExecutionKey(ctx)
	assert.True(t, found)
	assert.Equal(t, int64(42), valFromCtx)

	valFromCtx, found = GetExecutionKey(context.Background())
	assert.False(t, found)
	assert.Equal(t, int64(0), valFromCtx)
}

func TestCorrelationId(t *testing.T) {
	ctx := WithCorrelationId(context.Background(), "abc")

	id, found := GetCorrelationId(ctx)
	assert.True(t, found)
	assert.Equal(t, "abc", id)

	_, found = GetCorrelationId(WithCorrelationId(context.Background(), ""))
	assert.False(t, found)
}
