package service

import (
	"context"
	"github.com/Avi18971911/spangrouper/pkg/metrics"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/Avi18971911/spangrouper/pkg/store/memory"
	"github.com/Avi18971911/spangrouper/pkg/trace/cache"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

const testWindow = 10 * time.Second

var testStart = time.UnixMilli(1_700_000_000_000)

type recordingEmitter struct {
	mu     sync.Mutex
	keys   []string
	traces []model.StructuredTrace
	err    error
}

func (e *recordingEmitter) Forward(_ context.Context, key string, trace model.StructuredTrace) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.keys = append(e.keys, key)
	e.traces = append(e.traces, trace)
	return nil
}

func (e *recordingEmitter) Traces() []model.StructuredTrace {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.StructuredTrace(nil), e.traces...)
}

// blockingEmitter holds every Forward call until release is closed.
type blockingEmitter struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingEmitter() *blockingEmitter {
	return &blockingEmitter{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (e *blockingEmitter) Forward(_ context.Context, _ string, _ model.StructuredTrace) error {
	e.entered <- struct{}{}
	<-e.release
	return nil
}

type neverSampler struct{}

func (neverSampler) Sample() bool { return false }

type taskFixture struct {
	task    *Task
	stores  *store.Stores
	emitter *recordingEmitter
	metrics *metrics.Metrics
}

func newTaskFixture(t *testing.T, clock clockwork.Clock, cfg TaskConfig) *taskFixture {
	return newTaskFixtureWith(t, clock, cfg, memory.NewTaskStores(), cache.NoopEmittedTraceCache{})
}

func newTaskFixtureWith(
	t *testing.T,
	clock clockwork.Clock,
	cfg TaskConfig,
	stores *store.Stores,
	emitted cache.EmittedTraceCache,
) *taskFixture {
	if cfg.Window == 0 {
		cfg.Window = testWindow
	}
	emitter := &recordingEmitter{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	task := NewTask(cfg, stores, emitter, emitted, clock, m, zap.NewNop())
	return &taskFixture{task: task, stores: stores, emitter: emitter, metrics: m}
}

func span(tenant string, traceID byte, spanID byte) model.RawSpan {
	return model.RawSpan{
		TenantID: tenant,
		TraceID:  []byte{0xf0, traceID},
		SpanID:   []byte{spanID},
		Payload:  []byte{traceID, spanID},
	}
}

func spanIDs(trace model.StructuredTrace) [][]byte {
	ids := make([][]byte, 0, len(trace.Spans))
	for _, s := range trace.Spans {
		ids = append(ids, s.SpanID)
	}
	return ids
}

func countEntries[K any, V any](t *testing.T, s *store.KeyValueStore[K, V]) int {
	count := 0
	err := s.All(context.Background(), func(K, V) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("failed to scan %s: %v", s.Name(), err)
	}
	return count
}

func newSeededSource() rand.Source {
	return rand.NewPCG(1, 2)
}
