package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartAndEndSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("tracing-test", exporter))

	_, span := StartSpan(context.Background(), "post.approve", attribute.String("post.id", "post-1"))
	EndSpan(span, nil)

	_, failed := StartSpan(context.Background(), "post.reject")
	EndSpan(failed, errors.New("not your turn"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "post.approve", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("post.id", "post-1"))
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "not your turn", spans[1].Status.Description)
}
