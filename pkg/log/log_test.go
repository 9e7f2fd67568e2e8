package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLoggerCarriesRequestId(t *testing.T) {
	ctx := WithRequestId(context.Background(), "abc123")
	entry := GetLogger(ctx)
	assert.Equal(t, "abc123", entry.Data[CtxRequestId])

	entry = ComponentLogger(ctx, "watcher")
	assert.Equal(t, "watcher", entry.Data["component"])
	assert.Equal(t, "abc123", entry.Data[CtxRequestId])
}

func TestGetLoggerWithoutRequestId(t *testing.T) {
	entry := GetLogger(context.Background())
	_, ok := entry.Data[CtxRequestId]
	assert.False(t, ok)
}
