package model

import (
	"encoding/hex"
	"time"
)

// TraceIdentity is the grouping key of the grouper. Every span of a trace
// carries the same TraceIdentity and is processed by the same task.
type TraceIdentity struct {
	TenantID string `cbor:"1,keyasint"`
	TraceID  []byte `cbor:"2,keyasint"`
}

// String renders the identity as tenant/hex(traceId). It is used as the key of
// in-memory maps and caches.
func (t TraceIdentity) String() string {
	return t.TenantID + "/" + t.HexTraceID()
}

func (t TraceIdentity) HexTraceID() string {
	return hex.EncodeToString(t.TraceID)
}

// TraceState is the per-trace bookkeeping persisted in the trace state store.
// Timestamps are unix milliseconds.
type TraceState struct {
	TraceStartTimestamp int64    `cbor:"1,keyasint"`
	TraceEndTimestamp   int64    `cbor:"2,keyasint"`
	EmitTs              int64    `cbor:"3,keyasint"`
	SpanIDs             [][]byte `cbor:"4,keyasint"`
	TenantID            string   `cbor:"5,keyasint"`
	TraceID             []byte   `cbor:"6,keyasint"`
}

func (t *TraceState) Identity() TraceIdentity {
	return TraceIdentity{TenantID: t.TenantID, TraceID: t.TraceID}
}

func (t *TraceState) SpanCount() int {
	return len(t.SpanIDs)
}

func (t *TraceState) EmitTime() time.Time {
	return time.UnixMilli(t.EmitTs)
}

// StructuredTrace is the aggregate handed downstream once a trace is final.
// Spans are in no guaranteed order.
type StructuredTrace struct {
	TenantID  string    `json:"tenant_id"`
	TraceID   []byte    `json:"trace_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Spans     []RawSpan `json:"spans"`
}

func (s StructuredTrace) Identity() TraceIdentity {
	return TraceIdentity{TenantID: s.TenantID, TraceID: s.TraceID}
}

// Key is the record key used on the output channel.
func (s StructuredTrace) Key() string {
	return hex.EncodeToString(s.TraceID)
}
