package event_bus

import (
	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sync"
	"testing"
)

type message struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func TestTopicBus(t *testing.T) {
	t.Run("should deliver published values to subscribers of the topic", func(t *testing.T) {
		bus := NewTopicBus[message, message](EventBus.New(), zap.NewNop())
		var mu sync.Mutex
		var received []message
		err := bus.Subscribe("traces", func(input message) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, input)
			return nil
		}, true)
		require.NoError(t, err)

		require.NoError(t, bus.Publish("traces", message{Key: "a", Count: 1}))
		require.NoError(t, bus.Publish("other", message{Key: "b", Count: 2}))
		bus.WaitAsync()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []message{{Key: "a", Count: 1}}, received)
	})

	t.Run("should stop delivering after unsubscribe", func(t *testing.T) {
		bus := NewTopicBus[message, message](EventBus.New(), zap.NewNop())
		calls := 0
		require.NoError(t, bus.Subscribe("traces", func(message) error {
			calls++
			return nil
		}, true))
		require.NoError(t, bus.Unsubscribe("traces"))

		require.NoError(t, bus.Publish("traces", message{Key: "a"}))
		bus.WaitAsync()
		assert.Equal(t, 0, calls)
		assert.Error(t, bus.Unsubscribe("traces"))
	})
}
