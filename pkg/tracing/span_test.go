package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansAttachToParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "root", "trace-1")
	_, a := StartChildSpan(ctx, "a")
	_, b := StartChildSpan(ctx, "b")
	a.End()
	b.End()
	root.End()

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "trace-1", children[0].TraceID)
	assert.Equal(t, "b", children[1].Name)
	root.Log()
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "x", "")
	s.End()
	first := s.Duration
	time.Sleep(2 * time.Millisecond)
	s.End()
	assert.Equal(t, first, s.Duration)
}

func TestDetachedChild(t *testing.T) {
	ctx, child := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, child.TraceID)
	assert.Same(t, child, SpanFromContext(ctx))

	child.SetAttr("k", 1)
	v, ok := child.Attr("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
