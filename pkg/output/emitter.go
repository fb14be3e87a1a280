package output

import (
	"context"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
)

// Emitter forwards completed traces to a downstream channel. key is the hex
// form of the trace id.
type Emitter interface {
	Forward(ctx context.Context, key string, trace model.StructuredTrace) error
}

// MultiEmitter forwards to every emitter in order and stops at the first failure.
type MultiEmitter struct {
	emitters []Emitter
}

func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Forward(ctx context.Context, key string, trace model.StructuredTrace) error {
	for i, emitter := range m.emitters {
		if err := emitter.Forward(ctx, key, trace); err != nil {
			return fmt.Errorf("emitter %d failed to forward trace %s: %w", i, key, err)
		}
	}
	return nil
}
