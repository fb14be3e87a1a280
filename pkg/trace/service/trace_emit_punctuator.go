package service

import (
	"context"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/metrics"
	"github.com/Avi18971911/spangrouper/pkg/output"
	"github.com/Avi18971911/spangrouper/pkg/scheduler"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/Avi18971911/spangrouper/pkg/trace/cache"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"go.uber.org/zap"
	"time"
)

// TraceEmitScheduler arms the emission timer of a trace.
type TraceEmitScheduler interface {
	Arm(id model.TraceIdentity, delay time.Duration)
}

// TraceEmitSchedulerImpl owns the timers of one task. Every open trace has a
// single TraceEmitPunctuator that re-arms itself until the deadline stored in
// the trace state stops moving, then emits the trace.
type TraceEmitSchedulerImpl struct {
	scheduler   *scheduler.Scheduler
	spans       *store.SpanStore
	traceStates *store.TraceStateStore
	emitter     output.Emitter
	sampler     Sampler
	admission   AdmissionController
	emitted     cache.EmittedTraceCache
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewTraceEmitScheduler(
	scheduler *scheduler.Scheduler,
	stores *store.Stores,
	emitter output.Emitter,
	sampler Sampler,
	admission AdmissionController,
	emitted cache.EmittedTraceCache,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *TraceEmitSchedulerImpl {
	return &TraceEmitSchedulerImpl{
		scheduler:   scheduler,
		spans:       stores.Spans,
		traceStates: stores.TraceStates,
		emitter:     emitter,
		sampler:     sampler,
		admission:   admission,
		emitted:     emitted,
		metrics:     metrics,
		logger:      logger,
	}
}

func (s *TraceEmitSchedulerImpl) Arm(id model.TraceIdentity, delay time.Duration) {
	s.scheduler.Schedule(delay, &TraceEmitPunctuator{id: id, owner: s})
}

type TraceEmitPunctuator struct {
	id    model.TraceIdentity
	owner *TraceEmitSchedulerImpl
}

func (p *TraceEmitPunctuator) Punctuate(ctx context.Context, now time.Time) error {
	return p.owner.punctuate(ctx, p, now)
}

func (s *TraceEmitSchedulerImpl) punctuate(ctx context.Context, p *TraceEmitPunctuator, now time.Time) error {
	state, found, err := s.traceStates.Get(ctx, p.id)
	if err != nil {
		return fmt.Errorf("failed to get trace state for %s: %w", p.id, err)
	}
	if !found {
		s.logger.Debug("Trace already emitted, dropping punctuator", zap.String("trace", p.id.String()))
		return nil
	}

	emitTime := state.EmitTime()
	if emitTime.After(now) {
		delay := emitTime.Sub(now)
		s.scheduler.ScheduleAt(now.Add(delay), p)
		s.logger.Debug(
			"Re-armed punctuator",
			zap.String("trace", p.id.String()),
			zap.Duration("delay", delay),
		)
		return nil
	}

	trace, spanKeys, err := s.assemble(ctx, &state)
	if err != nil {
		return err
	}

	if s.sampler.Sample() {
		if err := s.emitter.Forward(ctx, trace.Key(), trace); err != nil {
			return fmt.Errorf("failed to forward trace %s: %w", p.id, err)
		}
		s.metrics.TraceEmitted(p.id.TenantID, len(trace.Spans), now.Sub(trace.StartTime))
		s.logger.Debug(
			"Emitted trace",
			zap.String("trace", p.id.String()),
			zap.Int("spans", len(trace.Spans)),
		)
	} else {
		s.metrics.TraceUnsampled(p.id.TenantID)
	}

	if err := s.traceStates.Delete(ctx, p.id); err != nil {
		return fmt.Errorf("failed to delete trace state for %s: %w", p.id, err)
	}
	if err := s.spans.Delete(ctx, spanKeys...); err != nil {
		return fmt.Errorf("failed to delete spans for %s: %w", p.id, err)
	}
	s.admission.Release(p.id)
	if err := s.emitted.Remember(p.id); err != nil {
		s.logger.Warn("Failed to remember emitted trace", zap.String("trace", p.id.String()), zap.Error(err))
	}
	return nil
}

// assemble collects every buffered span of the trace, including spans whose
// ids are missing from the state.
func (s *TraceEmitSchedulerImpl) assemble(
	ctx context.Context,
	state *model.TraceState,
) (model.StructuredTrace, []model.SpanIdentity, error) {
	id := state.Identity()
	var spans []model.RawSpan
	var keys []model.SpanIdentity
	err := s.spans.Prefix(ctx, model.EncodeTraceIdentity(id), func(key model.SpanIdentity, span model.RawSpan) error {
		keys = append(keys, key)
		spans = append(spans, span)
		return nil
	})
	if err != nil {
		return model.StructuredTrace{}, nil, fmt.Errorf("failed to read spans for %s: %w", id, err)
	}
	if len(spans) != state.SpanCount() {
		s.logger.Warn(
			"Span count of trace state does not match the span store",
			zap.String("trace", id.String()),
			zap.Int("state_spans", state.SpanCount()),
			zap.Int("stored_spans", len(spans)),
		)
	}
	return model.StructuredTrace{
		TenantID:  id.TenantID,
		TraceID:   id.TraceID,
		StartTime: time.UnixMilli(state.TraceStartTimestamp),
		EndTime:   time.UnixMilli(state.TraceEndTimestamp),
		Spans:     spans,
	}, keys, nil
}
