package output

import (
	"context"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/elasticsearch/client"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/Avi18971911/spangrouper/pkg/trace/otlp"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ElasticsearchEmitter indexes every trace as one document. The document id is
// derived from the trace identity and start time, so a re-emitted trace
// replaces its earlier document.
type ElasticsearchEmitter struct {
	client client.ElasticsearchClient
	index  string
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewElasticsearchEmitter(
	client client.ElasticsearchClient,
	index string,
	clock clockwork.Clock,
	logger *zap.Logger,
) *ElasticsearchEmitter {
	return &ElasticsearchEmitter{
		client: client,
		index:  index,
		clock:  clock,
		logger: logger,
	}
}

// DocumentID is unique per emission of a trace. A trace re-emitted after a
// restart keeps its persisted start time and so its id, while a trace reopened
// by a late span starts later and gets a document of its own.
func DocumentID(trace model.StructuredTrace) string {
	return fmt.Sprintf("%s-%s-%d", trace.TenantID, trace.Key(), trace.StartTime.UnixMilli())
}

func (e *ElasticsearchEmitter) Forward(ctx context.Context, key string, trace model.StructuredTrace) error {
	document := e.toTraceDocument(key, trace)
	metaMap, documentMap, err := client.ToMetaAndDataMap([]model.TraceDocument{document})
	if err != nil {
		return fmt.Errorf("failed to convert trace %s to document: %w", key, err)
	}
	if err := e.client.Index(ctx, metaMap[0], documentMap[0], e.index); err != nil {
		return fmt.Errorf("failed to index trace %s: %w", key, err)
	}
	return nil
}

func (e *ElasticsearchEmitter) toTraceDocument(key string, trace model.StructuredTrace) model.TraceDocument {
	spans := make([]model.SpanDocument, 0, len(trace.Spans))
	for _, span := range trace.Spans {
		documents, err := otlp.ToSpanDocuments(span.Payload)
		if err != nil {
			e.logger.Warn(
				"Skipping span with undecodable payload",
				zap.String("trace_id", key),
				zap.String("span", span.Identity().String()),
				zap.Error(err),
			)
			continue
		}
		spans = append(spans, documents...)
	}
	return model.TraceDocument{
		Id:        DocumentID(trace),
		TenantID:  trace.TenantID,
		TraceID:   key,
		StartTime: trace.StartTime,
		EndTime:   trace.EndTime,
		EmittedAt: e.clock.Now(),
		SpanCount: len(trace.Spans),
		Spans:     spans,
	}
}
