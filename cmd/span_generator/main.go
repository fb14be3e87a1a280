package main

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type generatorConfig struct {
	endpoint        string
	tenantAttribute string
	tenants         []string
	traces          int
	spans           int
	spanDelay       time.Duration
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := generatorConfig{}
	cmd := &cobra.Command{
		Use:          "span_generator",
		Short:        "Export synthetic multi-span traces for several tenants over OTLP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&cfg.endpoint, "endpoint", "localhost:4317", "OTLP gRPC endpoint of the span grouper")
	cmd.Flags().StringVar(&cfg.tenantAttribute, "tenant-attribute", "tenant-id", "resource attribute carrying the tenant id")
	cmd.Flags().StringSliceVar(&cfg.tenants, "tenants", []string{"tenant-a", "tenant-b"}, "tenants to generate traces for")
	cmd.Flags().IntVar(&cfg.traces, "traces", 10, "traces per tenant")
	cmd.Flags().IntVar(&cfg.spans, "spans", 5, "spans per trace")
	cmd.Flags().DurationVar(&cfg.spanDelay, "span-delay", 200*time.Millisecond, "pause between the spans of a trace")
	return cmd
}

func run(ctx context.Context, cfg generatorConfig, logger *zap.Logger) error {
	if cfg.spans < 1 {
		return fmt.Errorf("spans must be at least 1, got %d", cfg.spans)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, tenant := range cfg.tenants {
		g.Go(func() error {
			provider, err := newTracerProvider(gctx, cfg, tenant)
			if err != nil {
				return err
			}
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					logger.Error("Failed to flush spans", zap.String("tenant", tenant), zap.Error(err))
				}
			}()

			tracer := provider.Tracer("span-generator")
			for i := 0; i < cfg.traces; i++ {
				traceID, err := generateTrace(gctx, tracer, cfg.spans, cfg.spanDelay)
				if err != nil {
					return err
				}
				logger.Info(
					"Generated trace",
					zap.String("tenant", tenant),
					zap.String("trace_id", traceID.String()),
					zap.Int("spans", cfg.spans),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

func newTracerProvider(ctx context.Context, cfg generatorConfig, tenant string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(cfg.endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("span-generator"),
			attribute.String(cfg.tenantAttribute, tenant),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// generateTrace starts a root span and ends spans-1 children under it, one
// every spanDelay, so the spans of a trace reach the exporter spread out.
func generateTrace(ctx context.Context, tracer trace.Tracer, spans int, spanDelay time.Duration) (trace.TraceID, error) {
	rootCtx, root := tracer.Start(ctx, "handle-request", trace.WithSpanKind(trace.SpanKindServer))
	defer root.End()
	root.SetAttributes(attribute.String("operation.id", randomString()))

	for i := 1; i < spans; i++ {
		_, child := tracer.Start(rootCtx, fmt.Sprintf("step-%d", i), trace.WithSpanKind(trace.SpanKindInternal))
		child.SetAttributes(attribute.Int("step", i))
		select {
		case <-ctx.Done():
			child.End()
			return root.SpanContext().TraceID(), ctx.Err()
		case <-time.After(spanDelay):
		}
		child.End()
	}
	return root.SpanContext().TraceID(), nil
}

func randomString() string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 10)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}
