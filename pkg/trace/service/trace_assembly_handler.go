package service

import (
	"context"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/metrics"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/Avi18971911/spangrouper/pkg/trace/cache"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"time"
)

type TraceAssemblyHandler interface {
	// Handle buffers one span. Rejected spans are dropped without an error.
	Handle(ctx context.Context, span model.RawSpan) error
}

type TraceAssemblyHandlerImpl struct {
	spans       *store.SpanStore
	traceStates *store.TraceStateStore
	admission   AdmissionController
	timers      TraceEmitScheduler
	emitted     cache.EmittedTraceCache
	window      time.Duration
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewTraceAssemblyHandler(
	stores *store.Stores,
	admission AdmissionController,
	timers TraceEmitScheduler,
	emitted cache.EmittedTraceCache,
	window time.Duration,
	clock clockwork.Clock,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) TraceAssemblyHandler {
	return &TraceAssemblyHandlerImpl{
		spans:       stores.Spans,
		traceStates: stores.TraceStates,
		admission:   admission,
		timers:      timers,
		emitted:     emitted,
		window:      window,
		clock:       clock,
		metrics:     metrics,
		logger:      logger,
	}
}

func (h *TraceAssemblyHandlerImpl) Handle(ctx context.Context, span model.RawSpan) error {
	start := h.clock.Now()
	id := span.TraceIdentity()

	state, found, err := h.traceStates.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get trace state for %s: %w", id, err)
	}
	var current *model.TraceState
	if found {
		current = &state
	}
	if !h.admission.Admit(id, current) {
		return nil
	}

	if err := h.spans.Put(ctx, span.Identity(), span); err != nil {
		return fmt.Errorf("failed to store span %s: %w", span.Identity(), err)
	}

	now := h.clock.Now()
	nowMillis := now.UnixMilli()
	deadline := now.Add(h.window).UnixMilli()
	if !found {
		if h.emitted.Contains(id) {
			h.metrics.LateSpan(id.TenantID)
			h.logger.Debug("Span arrived for an already emitted trace", zap.String("trace", id.String()))
		}
		state = model.TraceState{
			TraceStartTimestamp: nowMillis,
			TraceEndTimestamp:   nowMillis,
			EmitTs:              deadline,
			SpanIDs:             [][]byte{span.SpanID},
			TenantID:            id.TenantID,
			TraceID:             id.TraceID,
		}
		h.timers.Arm(id, h.window)
	} else {
		state.SpanIDs = append(state.SpanIDs, span.SpanID)
		state.TraceEndTimestamp = nowMillis
		state.EmitTs = deadline
	}

	if err := h.traceStates.Put(ctx, id, state); err != nil {
		return fmt.Errorf("failed to store trace state for %s: %w", id, err)
	}
	h.metrics.ObserveProcessingLatency(id.TenantID, h.clock.Since(start))
	return nil
}
