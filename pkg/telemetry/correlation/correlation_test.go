package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "req-1")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "req-1", cid)
	assert.Equal(t, "req-1", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	assert.Len(t, cid, 26)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestContextWithRemoteSpanIgnoresGarbage(t *testing.T) {
	ctx := ContextWithRemoteSpan(context.Background(), "nope", "nope")
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())

	ctx = ContextWithRemoteSpan(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
}
