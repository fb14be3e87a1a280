package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/metrics"
	"github.com/Avi18971911/spangrouper/pkg/output"
	"github.com/Avi18971911/spangrouper/pkg/scheduler"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/Avi18971911/spangrouper/pkg/trace/cache"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"time"
)

var ErrTaskStopped = errors.New("task has stopped")

type TaskConfig struct {
	ID        int
	QueueSize int
	Window    time.Duration
	Limits    SpanLimits
	Sampler   Sampler
}

// Task processes the spans of one partition. Spans and timers are handled on
// the goroutine running Run, which is the only one touching the task's stores.
type Task struct {
	id        int
	records   chan model.RawSpan
	done      chan struct{}
	stores    *store.Stores
	scheduler *scheduler.Scheduler
	handler   TraceAssemblyHandler
	recovery  RecoveryManager
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewTask(
	cfg TaskConfig,
	stores *store.Stores,
	emitter output.Emitter,
	emitted cache.EmittedTraceCache,
	clock clockwork.Clock,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *Task {
	logger = logger.With(zap.Int("task", cfg.ID))
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = AlwaysSampler{}
	}
	if emitted == nil {
		emitted = cache.NoopEmittedTraceCache{}
	}

	sched := scheduler.NewScheduler(clock.Now)
	admission := NewAdmissionController(cfg.Limits, metrics, logger)
	timers := NewTraceEmitScheduler(sched, stores, emitter, sampler, admission, emitted, metrics, logger)
	return &Task{
		id:        cfg.ID,
		records:   make(chan model.RawSpan, cfg.QueueSize),
		done:      make(chan struct{}),
		stores:    stores,
		scheduler: sched,
		handler:   NewTraceAssemblyHandler(stores, admission, timers, emitted, cfg.Window, clock, metrics, logger),
		recovery:  NewRecoveryManager(stores.TraceStates, timers, cfg.Window, clock, metrics, logger),
		clock:     clock,
		logger:    logger,
	}
}

func (t *Task) ID() int {
	return t.id
}

// Submit queues a span for the task. It blocks while the queue is full.
func (t *Task) Submit(ctx context.Context, span model.RawSpan) error {
	select {
	case t.records <- span:
		return nil
	case <-t.done:
		return ErrTaskStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run restores the timers of persisted traces, then handles spans and fires
// due timers until ctx is cancelled or a store or forward error occurs.
// Cancellation is a clean stop and returns nil.
func (t *Task) Run(ctx context.Context) error {
	defer close(t.done)
	if _, err := t.recovery.Restore(ctx); err != nil {
		return fmt.Errorf("task %d: %w", t.id, err)
	}

	for {
		wakeup, timer := t.nextWakeup()
		select {
		case <-ctx.Done():
			stopTimer(timer)
			t.logger.Info("Stopping task", zap.Int("armed_punctuators", t.scheduler.Len()))
			return nil
		case span := <-t.records:
			stopTimer(timer)
			if err := t.handle(ctx, span); err != nil {
				return err
			}
		case <-wakeup:
			if err := t.fireDue(ctx); err != nil {
				return err
			}
		}
	}
}

func (t *Task) handle(ctx context.Context, span model.RawSpan) error {
	if err := t.handler.Handle(ctx, span); err != nil {
		t.logger.Error("Failed to handle span", zap.Error(err))
		return fmt.Errorf("task %d: %w", t.id, err)
	}
	return nil
}

func (t *Task) fireDue(ctx context.Context) error {
	if _, err := t.scheduler.RunDue(ctx, t.clock.Now()); err != nil {
		t.logger.Error("Failed to fire punctuator", zap.Error(err))
		return fmt.Errorf("task %d: %w", t.id, err)
	}
	return nil
}

var firedNow = func() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()

func (t *Task) nextWakeup() (<-chan time.Time, clockwork.Timer) {
	due, ok := t.scheduler.NextDue()
	if !ok {
		return nil, nil
	}
	delay := due.Sub(t.clock.Now())
	if delay <= 0 {
		return firedNow, nil
	}
	timer := t.clock.NewTimer(delay)
	return timer.Chan(), timer
}

func stopTimer(timer clockwork.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

// Close releases the stores of the task. It must be called after Run returns.
func (t *Task) Close() error {
	if err := t.stores.Close(); err != nil {
		return fmt.Errorf("failed to close stores of task %d: %w", t.id, err)
	}
	return nil
}
