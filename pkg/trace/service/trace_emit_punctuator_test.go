package service

import (
	"context"
	"errors"
	"github.com/Avi18971911/spangrouper/pkg/store/memory"
	"github.com/Avi18971911/spangrouper/pkg/trace/cache"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestTraceEmitPunctuator(t *testing.T) {
	ctx := context.Background()

	t.Run("should emit once with exactly the accepted spans", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		f := newTaskFixture(t, clock, TaskConfig{})

		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 1)))
		clock.Advance(3 * time.Second)
		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 2)))
		clock.Advance(3 * time.Second)
		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 3)))

		clock.Advance(testWindow - time.Millisecond)
		require.NoError(t, f.task.fireDue(ctx))
		assert.Empty(t, f.emitter.Traces())

		clock.Advance(time.Millisecond)
		require.NoError(t, f.task.fireDue(ctx))
		traces := f.emitter.Traces()
		require.Len(t, traces, 1)
		assert.ElementsMatch(t, [][]byte{{1}, {2}, {3}}, spanIDs(traces[0]))
		assert.Equal(t, "f001", f.emitter.keys[0])
		assert.Equal(t, testStart, traces[0].StartTime)
		assert.Equal(t, testStart.Add(6*time.Second), traces[0].EndTime)

		clock.Advance(time.Hour)
		require.NoError(t, f.task.fireDue(ctx))
		assert.Len(t, f.emitter.Traces(), 1)
		assert.Equal(t, 0, countEntries(t, f.stores.Spans))
		assert.Equal(t, 0, countEntries(t, f.stores.TraceStates))
		assert.Equal(t, 0, f.task.scheduler.Len())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EmittedTraces.WithLabelValues("tenant")))
	})

	t.Run("should re-arm when a span lands just before the timer fires", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		f := newTaskFixture(t, clock, TaskConfig{})

		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 1)))
		clock.Advance(testWindow - time.Millisecond)
		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 2)))
		clock.Advance(time.Millisecond)
		require.NoError(t, f.task.fireDue(ctx))

		assert.Empty(t, f.emitter.Traces())
		assert.Equal(t, 1, f.task.scheduler.Len())
		due, ok := f.task.scheduler.NextDue()
		require.True(t, ok)
		assert.Equal(t, testStart.Add(2*testWindow-time.Millisecond), due)

		clock.Advance(testWindow - time.Millisecond)
		require.NoError(t, f.task.fireDue(ctx))
		traces := f.emitter.Traces()
		require.Len(t, traces, 1)
		assert.ElementsMatch(t, [][]byte{{1}, {2}}, spanIDs(traces[0]))
	})

	t.Run("should do nothing when the trace state is gone", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		f := newTaskFixture(t, clock, TaskConfig{})
		id := model.TraceIdentity{TenantID: "tenant", TraceID: []byte{9}}

		f.task.handler.(*TraceAssemblyHandlerImpl).timers.Arm(id, time.Second)
		clock.Advance(time.Second)
		require.NoError(t, f.task.fireDue(ctx))

		assert.Empty(t, f.emitter.Traces())
		assert.Equal(t, 0, f.task.scheduler.Len())
	})

	t.Run("should clean up unsampled traces without forwarding", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		f := newTaskFixture(t, clock, TaskConfig{Sampler: neverSampler{}})

		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 1)))
		clock.Advance(testWindow)
		require.NoError(t, f.task.fireDue(ctx))

		assert.Empty(t, f.emitter.Traces())
		assert.Equal(t, 0, countEntries(t, f.stores.TraceStates))
		assert.Equal(t, 0, countEntries(t, f.stores.Spans))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UnsampledTraces.WithLabelValues("tenant")))
	})

	t.Run("should keep the trace when forwarding fails", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		f := newTaskFixture(t, clock, TaskConfig{})
		unavailable := errors.New("downstream unavailable")
		f.emitter.err = unavailable

		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 1)))
		clock.Advance(testWindow)
		err := f.task.fireDue(ctx)

		assert.ErrorIs(t, err, unavailable)
		assert.Equal(t, 1, countEntries(t, f.stores.TraceStates))
		assert.Equal(t, 1, countEntries(t, f.stores.Spans))
	})

	t.Run("should include spans missing from the trace state", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		f := newTaskFixture(t, clock, TaskConfig{})
		orphan := span("tenant", 1, 7)
		require.NoError(t, f.stores.Spans.Put(ctx, orphan.Identity(), orphan))

		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 1)))
		clock.Advance(testWindow)
		require.NoError(t, f.task.fireDue(ctx))

		traces := f.emitter.Traces()
		require.Len(t, traces, 1)
		assert.ElementsMatch(t, [][]byte{{1}, {7}}, spanIDs(traces[0]))
		assert.Equal(t, 0, countEntries(t, f.stores.Spans))
	})

	t.Run("should count spans arriving after their trace was emitted", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(testStart)
		emitted, err := cache.NewEmittedTraceCacheImpl(100, time.Hour)
		require.NoError(t, err)
		defer emitted.Close()
		f := newTaskFixtureWith(t, clock, TaskConfig{}, memory.NewTaskStores(), emitted)

		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 1)))
		clock.Advance(testWindow)
		require.NoError(t, f.task.fireDue(ctx))
		emitted.Wait()

		require.NoError(t, f.task.handle(ctx, span("tenant", 1, 2)))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LateSpans.WithLabelValues("tenant")))
		assert.Equal(t, 1, countEntries(t, f.stores.TraceStates))
	})
}

func TestNewSampler(t *testing.T) {
	t.Run("should sample everything outside the open range", func(t *testing.T) {
		assert.IsType(t, AlwaysSampler{}, NewSampler(0, nil))
		assert.IsType(t, AlwaysSampler{}, NewSampler(100, nil))
	})

	t.Run("should sample roughly the configured share", func(t *testing.T) {
		sampler := NewSampler(25, newSeededSource())
		sampled := 0
		for i := 0; i < 10_000; i++ {
			if sampler.Sample() {
				sampled++
			}
		}
		assert.InDelta(t, 2500, sampled, 250)
	})
}
