package store

import (
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/fxamacker/cbor/v2"
)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: invalid deterministic encoding options: %v", err))
	}
	return mode
}

// CBORCodec stores values as deterministic CBOR.
type CBORCodec[T any] struct{}

func (CBORCodec[T]) Marshal(value T) ([]byte, error) {
	return encMode.Marshal(value)
}

func (CBORCodec[T]) Unmarshal(data []byte) (T, error) {
	var value T
	if err := cbor.Unmarshal(data, &value); err != nil {
		return value, err
	}
	return value, nil
}

type TraceIdentityCodec struct{}

func (TraceIdentityCodec) Marshal(key model.TraceIdentity) ([]byte, error) {
	return model.EncodeTraceIdentity(key), nil
}

func (TraceIdentityCodec) Unmarshal(data []byte) (model.TraceIdentity, error) {
	return model.DecodeTraceIdentity(data)
}

type SpanIdentityCodec struct{}

func (SpanIdentityCodec) Marshal(key model.SpanIdentity) ([]byte, error) {
	return model.EncodeSpanIdentity(key), nil
}

func (SpanIdentityCodec) Unmarshal(data []byte) (model.SpanIdentity, error) {
	return model.DecodeSpanIdentity(data)
}

type SpanStore = KeyValueStore[model.SpanIdentity, model.RawSpan]
type TraceStateStore = KeyValueStore[model.TraceIdentity, model.TraceState]

const (
	SpanStoreName       = "spans"
	TraceStateStoreName = "trace_state"
)

func NewSpanStore(backend Backend) *SpanStore {
	return NewKeyValueStore[model.SpanIdentity, model.RawSpan](
		SpanStoreName,
		backend,
		SpanIdentityCodec{},
		CBORCodec[model.RawSpan]{},
	)
}

func NewTraceStateStore(backend Backend) *TraceStateStore {
	return NewKeyValueStore[model.TraceIdentity, model.TraceState](
		TraceStateStoreName,
		backend,
		TraceIdentityCodec{},
		CBORCodec[model.TraceState]{},
	)
}
