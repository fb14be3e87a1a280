package output

import (
	"context"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/event_bus"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
)

// TraceRecord is the keyed record published on the output topic.
type TraceRecord struct {
	Key   string                `json:"key"`
	Trace model.StructuredTrace `json:"trace"`
}

type BusEmitter struct {
	bus   event_bus.TopicBus[TraceRecord, TraceRecord]
	topic string
}

func NewBusEmitter(bus event_bus.TopicBus[TraceRecord, TraceRecord], topic string) *BusEmitter {
	return &BusEmitter{bus: bus, topic: topic}
}

func (e *BusEmitter) Forward(_ context.Context, key string, trace model.StructuredTrace) error {
	if err := e.bus.Publish(e.topic, TraceRecord{Key: key, Trace: trace}); err != nil {
		return fmt.Errorf("failed to publish trace %s: %w", key, err)
	}
	return nil
}
