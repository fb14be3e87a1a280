package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/Avi18971911/spangrouper/pkg/trace/otlp"
	"github.com/Avi18971911/spangrouper/pkg/trace/service"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const TenantMetadataKey = "tenant-id"

var errMissingTenant = errors.New("no tenant id in metadata, resource attributes or defaults")

type ReceiverConfig struct {
	TenantAttribute string
	DefaultTenantID string
}

// TraceServiceServerImpl accepts OTLP trace exports and routes every span to
// the task owning its trace.
type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	router service.SpanRouter
	config ReceiverConfig
	logger *zap.Logger
}

func NewTraceServiceServerImpl(
	router service.SpanRouter,
	config ReceiverConfig,
	logger *zap.Logger,
) *TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl")
	return &TraceServiceServerImpl{
		router: router,
		config: config,
		logger: logger,
	}
}

func (tss *TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	metadataTenant := tenantFromMetadata(ctx)
	var rejected int64
	var lastReason string

	for _, resourceSpan := range req.ResourceSpans {
		tenant, err := tss.resolveTenant(metadataTenant, resourceSpan)
		if err != nil {
			count := countSpans(resourceSpan)
			rejected += count
			lastReason = err.Error()
			tss.logger.Warn(
				"Rejected resource spans without tenant",
				zap.String("service_name", otlp.ServiceName(resourceSpan)),
				zap.Int64("spans", count),
			)
			continue
		}

		for _, scopeSpan := range resourceSpan.ScopeSpans {
			for _, span := range scopeSpan.Spans {
				rawSpan, err := getRawSpan(tenant, resourceSpan, scopeSpan, span)
				if err != nil {
					rejected++
					lastReason = err.Error()
					tss.logger.Warn("Rejected span", zap.Error(err))
					continue
				}
				if err := tss.router.Route(ctx, rawSpan); err != nil {
					tss.logger.Error("Failed to route span", zap.Error(err))
					return nil, routeError(err)
				}
			}
		}
	}

	response := &protoTrace.ExportTraceServiceResponse{}
	if rejected > 0 {
		response.PartialSuccess = &protoTrace.ExportTracePartialSuccess{
			RejectedSpans: rejected,
			ErrorMessage:  lastReason,
		}
	}
	return response, nil
}

// resolveTenant prefers the request metadata, then the resource attribute,
// then the configured default.
func (tss *TraceServiceServerImpl) resolveTenant(metadataTenant string, resourceSpan *v1.ResourceSpans) (string, error) {
	if metadataTenant != "" {
		return metadataTenant, nil
	}
	if tss.config.TenantAttribute != "" {
		if tenant, ok := otlp.ResourceAttribute(resourceSpan, tss.config.TenantAttribute); ok && tenant != "" {
			return tenant, nil
		}
	}
	if tss.config.DefaultTenantID != "" {
		return tss.config.DefaultTenantID, nil
	}
	return "", errMissingTenant
}

func tenantFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(TenantMetadataKey)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func getRawSpan(
	tenant string,
	resourceSpan *v1.ResourceSpans,
	scopeSpan *v1.ScopeSpans,
	span *v1.Span,
) (model.RawSpan, error) {
	if len(span.TraceId) == 0 || len(span.SpanId) == 0 {
		return model.RawSpan{}, fmt.Errorf("span %q has an empty trace or span id", span.Name)
	}
	payload, err := otlp.EncodeSpan(resourceSpan, scopeSpan, span)
	if err != nil {
		return model.RawSpan{}, fmt.Errorf("failed to encode span %q: %w", span.Name, err)
	}
	return model.RawSpan{
		TenantID: tenant,
		TraceID:  span.TraceId,
		SpanID:   span.SpanId,
		Payload:  payload,
	}, nil
}

func countSpans(resourceSpan *v1.ResourceSpans) int64 {
	var count int64
	for _, scopeSpan := range resourceSpan.ScopeSpans {
		count += int64(len(scopeSpan.Spans))
	}
	return count
}

func routeError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
