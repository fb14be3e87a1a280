package event_bus

import (
	"encoding/json"
	"fmt"
	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
	"sync"
)

// TopicBus publishes values as JSON on named topics of an in-process bus and
// decodes them again for subscribers.
type TopicBus[InputType any, OutputType any] interface {
	Subscribe(topic string, handler func(input InputType) error, transactional bool) error
	Unsubscribe(topic string) error
	Publish(topic string, arg OutputType) error
	// WaitAsync blocks until every asynchronous handler has returned.
	WaitAsync()
}

type TopicBusImpl[InputType any, OutputType any] struct {
	eventBus EventBus.Bus
	mu       sync.Mutex
	handlers map[string]func(arg string)
	logger   *zap.Logger
}

func NewTopicBus[InputType any, OutputType any](
	eventBus EventBus.Bus,
	logger *zap.Logger,
) TopicBus[InputType, OutputType] {
	return &TopicBusImpl[InputType, OutputType]{
		eventBus: eventBus,
		handlers: make(map[string]func(arg string)),
		logger:   logger,
	}
}

func (tb *TopicBusImpl[InputType, OutputType]) Subscribe(
	topic string,
	handler func(input InputType) error,
	transactional bool,
) error {
	callback := func(arg string) {
		var input InputType
		if err := json.Unmarshal([]byte(arg), &input); err != nil {
			tb.logger.Error("Failed to unmarshal input during subscription of topic",
				zap.String("topic", topic),
				zap.Error(err),
			)
			return
		}
		if err := handler(input); err != nil {
			tb.logger.Error("Failed to handle input during subscription of topic",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}
	if err := tb.eventBus.SubscribeAsync(topic, callback, transactional); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	tb.mu.Lock()
	tb.handlers[topic] = callback
	tb.mu.Unlock()
	return nil
}

func (tb *TopicBusImpl[InputType, OutputType]) Unsubscribe(topic string) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	callback, ok := tb.handlers[topic]
	if !ok {
		return fmt.Errorf("no subscription for topic %s", topic)
	}
	if err := tb.eventBus.Unsubscribe(topic, callback); err != nil {
		return fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, err)
	}
	delete(tb.handlers, topic)
	return nil
}

func (tb *TopicBusImpl[InputType, OutputType]) Publish(
	topic string,
	arg OutputType,
) error {
	argBytes, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("failed to marshal output during publishing of topic %s: %w", topic, err)
	}
	tb.eventBus.Publish(topic, string(argBytes))
	return nil
}

func (tb *TopicBusImpl[InputType, OutputType]) WaitAsync() {
	tb.eventBus.WaitAsync()
}
