package store_test

import (
	"context"
	"errors"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/Avi18971911/spangrouper/pkg/store/memory"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestKeyValueStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should report absent keys as not found", func(t *testing.T) {
		states := store.NewTraceStateStore(memory.NewMemoryStore())
		_, found, err := states.Get(ctx, model.TraceIdentity{TenantID: "t", TraceID: []byte{1}})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("should return only the spans of a trace for its prefix", func(t *testing.T) {
		spans := store.NewSpanStore(memory.NewMemoryStore())
		traceA := model.TraceIdentity{TenantID: "tenant", TraceID: []byte{0xaa}}
		traceB := model.TraceIdentity{TenantID: "tenant", TraceID: []byte{0xaa, 0xbb}}
		otherTenant := model.TraceIdentity{TenantID: "tenant2", TraceID: []byte{0xaa}}

		for i, trace := range []model.TraceIdentity{traceA, traceA, traceB, otherTenant} {
			span := model.RawSpan{TenantID: trace.TenantID, TraceID: trace.TraceID, SpanID: []byte{byte(i)}}
			require.NoError(t, spans.Put(ctx, span.Identity(), span))
		}

		var got [][]byte
		err := spans.Prefix(ctx, model.EncodeTraceIdentity(traceA), func(key model.SpanIdentity, span model.RawSpan) error {
			assert.Equal(t, traceA, key.TraceIdentity())
			got = append(got, span.SpanID)
			return nil
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, [][]byte{{0}, {1}}, got)
	})

	t.Run("should delete several keys at once", func(t *testing.T) {
		backend := memory.NewMemoryStore()
		states := store.NewTraceStateStore(backend)
		a := model.TraceIdentity{TenantID: "t", TraceID: []byte{1}}
		b := model.TraceIdentity{TenantID: "t", TraceID: []byte{2}}
		require.NoError(t, states.Put(ctx, a, model.TraceState{TenantID: "t", TraceID: a.TraceID}))
		require.NoError(t, states.Put(ctx, b, model.TraceState{TenantID: "t", TraceID: b.TraceID}))

		require.NoError(t, states.Delete(ctx, a, b))
		assert.Equal(t, 0, backend.Len())
	})

	t.Run("should stop scanning on callback error", func(t *testing.T) {
		states := store.NewTraceStateStore(memory.NewMemoryStore())
		for i := 0; i < 3; i++ {
			id := model.TraceIdentity{TenantID: "t", TraceID: []byte{byte(i)}}
			require.NoError(t, states.Put(ctx, id, model.TraceState{TenantID: "t", TraceID: id.TraceID}))
		}
		stop := errors.New("stop")
		calls := 0
		err := states.All(ctx, func(model.TraceIdentity, model.TraceState) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("should wrap backend errors with the store name", func(t *testing.T) {
		backend := memory.NewMemoryStore()
		states := store.NewTraceStateStore(backend)
		require.NoError(t, backend.Close())

		err := states.Put(ctx, model.TraceIdentity{TenantID: "t"}, model.TraceState{})
		assert.ErrorIs(t, err, store.ErrClosed)
		assert.Contains(t, err.Error(), store.TraceStateStoreName)
	})
}
