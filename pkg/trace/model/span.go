package model

import (
	"encoding/hex"
	"fmt"
)

// SpanIdentity uniquely identifies one raw span within a tenant.
type SpanIdentity struct {
	TenantID string `cbor:"1,keyasint"`
	TraceID  []byte `cbor:"2,keyasint"`
	SpanID   []byte `cbor:"3,keyasint"`
}

func (s SpanIdentity) TraceIdentity() TraceIdentity {
	return TraceIdentity{TenantID: s.TenantID, TraceID: s.TraceID}
}

func (s SpanIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s", s.TenantID, hex.EncodeToString(s.TraceID), hex.EncodeToString(s.SpanID))
}

// RawSpan is the unit of ingestion. Payload is opaque to the grouper, only the
// identifiers are read for keying.
type RawSpan struct {
	TenantID string `cbor:"1,keyasint" json:"tenant_id"`
	TraceID  []byte `cbor:"2,keyasint" json:"trace_id"`
	SpanID   []byte `cbor:"3,keyasint" json:"span_id"`
	Payload  []byte `cbor:"4,keyasint" json:"payload"`
}

func (r RawSpan) Identity() SpanIdentity {
	return SpanIdentity{TenantID: r.TenantID, TraceID: r.TraceID, SpanID: r.SpanID}
}

func (r RawSpan) TraceIdentity() TraceIdentity {
	return TraceIdentity{TenantID: r.TenantID, TraceID: r.TraceID}
}
