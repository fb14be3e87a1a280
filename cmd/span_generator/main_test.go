package main

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"testing"
	"time"
)

func TestGenerateTrace(t *testing.T) {
	t.Run("should end the requested number of spans under one trace", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer provider.Shutdown(context.Background())

		traceID, err := generateTrace(context.Background(), provider.Tracer("test"), 4, time.Millisecond)
		require.NoError(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 4)
		for _, span := range spans {
			assert.Equal(t, traceID, span.SpanContext.TraceID())
		}
	})

	t.Run("should stop early when the context is cancelled", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer provider.Shutdown(context.Background())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := generateTrace(ctx, provider.Tracer("test"), 10, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, exporter.GetSpans(), 2)
	})
}

func TestRun(t *testing.T) {
	t.Run("should reject traces without spans", func(t *testing.T) {
		err := run(context.Background(), generatorConfig{tenants: []string{"a"}, traces: 1}, nil)
		assert.Error(t, err)
	})
}
