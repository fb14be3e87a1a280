package otlp

import (
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"testing"
	"time"
)

func TestToSpanDocuments(t *testing.T) {
	stringValue := func(value string) *commonv1.AnyValue {
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: value}}
	}
	resourceSpan := &v1.ResourceSpans{
		Resource: &resourcev1.Resource{
			Attributes: []*commonv1.KeyValue{{Key: "service.name", Value: stringValue("checkout")}},
		},
	}
	scopeSpan := &v1.ScopeSpans{Scope: &commonv1.InstrumentationScope{Name: "scope"}}
	start := time.Unix(100, 0)
	span := &v1.Span{
		TraceId:           []byte{0xab, 0xcd},
		SpanId:            []byte{0x01},
		ParentSpanId:      []byte{0x02},
		Name:              "charge",
		Kind:              v1.Span_SPAN_KIND_CLIENT,
		StartTimeUnixNano: uint64(start.UnixNano()),
		EndTimeUnixNano:   uint64(start.Add(time.Second).UnixNano()),
		Attributes:        []*commonv1.KeyValue{{Key: "http.method", Value: stringValue("POST")}},
		Events: []*v1.Span_Event{
			{Name: "retry", TimeUnixNano: uint64(start.UnixNano())},
		},
		Status: &v1.Status{Code: v1.Status_STATUS_CODE_ERROR, Message: "declined"},
	}

	t.Run("should convert an encoded span to its document", func(t *testing.T) {
		payload, err := EncodeSpan(resourceSpan, scopeSpan, span)
		require.NoError(t, err)

		documents, err := ToSpanDocuments(payload)
		require.NoError(t, err)
		require.Len(t, documents, 1)
		document := documents[0]
		assert.Equal(t, "abcd", document.TraceID)
		assert.Equal(t, "01", document.SpanID)
		assert.Equal(t, "02", document.ParentSpanID)
		assert.Equal(t, "checkout", document.ServiceName)
		assert.Equal(t, "SPAN_KIND_CLIENT", document.SpanKind)
		assert.Equal(t, model.Status{Message: "declined", Code: model.ERROR}, document.Status)
		assert.Equal(t, map[string]string{"http.method": "POST"}, document.Attributes)
		require.Len(t, document.Events, 1)
		assert.Equal(t, "retry", document.Events[0].Name)
		assert.True(t, start.Equal(document.StartTime))
	})

	t.Run("should fall back to an unknown service name", func(t *testing.T) {
		assert.Equal(t, unknownServiceName, ServiceName(&v1.ResourceSpans{}))
	})

	t.Run("should reject a payload that is not a span", func(t *testing.T) {
		_, err := ToSpanDocuments([]byte{0xff, 0xff, 0xff})
		assert.Error(t, err)
	})
}
