package otlp

import (
	"encoding/hex"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
	"time"
)

const unknownServiceName = "Never Assigned"

// EncodeSpan wraps a single span with its resource and scope so it can be
// decoded on its own later.
func EncodeSpan(resourceSpan *v1.ResourceSpans, scopeSpan *v1.ScopeSpans, span *v1.Span) ([]byte, error) {
	single := &v1.ResourceSpans{
		Resource:  resourceSpan.Resource,
		SchemaUrl: resourceSpan.SchemaUrl,
		ScopeSpans: []*v1.ScopeSpans{
			{
				Scope:     scopeSpan.Scope,
				SchemaUrl: scopeSpan.SchemaUrl,
				Spans:     []*v1.Span{span},
			},
		},
	}
	return proto.Marshal(single)
}

func DecodeSpan(payload []byte) (*v1.ResourceSpans, error) {
	var resourceSpan v1.ResourceSpans
	if err := proto.Unmarshal(payload, &resourceSpan); err != nil {
		return nil, fmt.Errorf("failed to decode span payload: %w", err)
	}
	return &resourceSpan, nil
}

// ToSpanDocuments converts the spans of a payload to their indexed form.
func ToSpanDocuments(payload []byte) ([]model.SpanDocument, error) {
	resourceSpan, err := DecodeSpan(payload)
	if err != nil {
		return nil, err
	}
	serviceName := ServiceName(resourceSpan)
	var documents []model.SpanDocument
	for _, scopeSpan := range resourceSpan.ScopeSpans {
		for _, span := range scopeSpan.Spans {
			documents = append(documents, getSpanDocument(span, serviceName))
		}
	}
	return documents, nil
}

func ServiceName(resourceSpan *v1.ResourceSpans) string {
	if value, ok := ResourceAttribute(resourceSpan, "service.name"); ok {
		return value
	}
	return unknownServiceName
}

func ResourceAttribute(resourceSpan *v1.ResourceSpans, key string) (string, bool) {
	if resourceSpan.Resource == nil {
		return "", false
	}
	for _, attr := range resourceSpan.Resource.Attributes {
		if attr.Key == key {
			return attr.Value.GetStringValue(), true
		}
	}
	return "", false
}

func getSpanDocument(span *v1.Span, serviceName string) model.SpanDocument {
	return model.SpanDocument{
		SpanID:       hex.EncodeToString(span.SpanId),
		ParentSpanID: hex.EncodeToString(span.ParentSpanId),
		TraceID:      hex.EncodeToString(span.TraceId),
		ServiceName:  serviceName,
		StartTime:    time.Unix(0, int64(span.StartTimeUnixNano)),
		EndTime:      time.Unix(0, int64(span.EndTimeUnixNano)),
		ActionName:   span.Name,
		SpanKind:     span.Kind.String(),
		Status:       getStatus(span),
		Attributes:   getAttributes(span.Attributes),
		Events:       getEvents(span),
	}
}

func getStatus(span *v1.Span) model.Status {
	switch span.GetStatus().GetCode() {
	case v1.Status_STATUS_CODE_UNSET:
		return model.Status{Message: span.GetStatus().GetMessage(), Code: model.UNSET}
	case v1.Status_STATUS_CODE_OK:
		return model.Status{Message: span.GetStatus().GetMessage(), Code: model.OK}
	default:
		return model.Status{Message: span.GetStatus().GetMessage(), Code: model.ERROR}
	}
}

func getEvents(span *v1.Span) []model.SpanEvent {
	events := make([]model.SpanEvent, len(span.Events))
	for i, event := range span.Events {
		events[i] = model.SpanEvent{
			Name:       event.Name,
			Attributes: getAttributes(event.Attributes),
			Timestamp:  time.Unix(0, int64(event.TimeUnixNano)),
		}
	}
	return events
}

func getAttributes(attributes []*commonv1.KeyValue) map[string]string {
	result := make(map[string]string, len(attributes))
	for _, attribute := range attributes {
		result[attribute.Key] = attribute.Value.GetStringValue()
	}
	return result
}
