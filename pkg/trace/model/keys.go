package model

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrMalformedKey = errors.New("malformed store key")

// The store keys are length prefixed so that the encoding of a TraceIdentity is
// a strict prefix of the encoding of every SpanIdentity belonging to it. This
// lets the span store answer "all spans of a trace" with a prefix scan.

func EncodeTraceIdentity(t TraceIdentity) []byte {
	buf := make([]byte, 0, 2*binary.MaxVarintLen64+len(t.TenantID)+len(t.TraceID))
	return appendTraceIdentity(buf, t.TenantID, t.TraceID)
}

func EncodeSpanIdentity(s SpanIdentity) []byte {
	buf := make([]byte, 0, 3*binary.MaxVarintLen64+len(s.TenantID)+len(s.TraceID)+len(s.SpanID))
	buf = appendTraceIdentity(buf, s.TenantID, s.TraceID)
	buf = binary.AppendUvarint(buf, uint64(len(s.SpanID)))
	return append(buf, s.SpanID...)
}

func DecodeTraceIdentity(key []byte) (TraceIdentity, error) {
	tenant, traceID, rest, err := readTraceIdentity(key)
	if err != nil {
		return TraceIdentity{}, err
	}
	if len(rest) != 0 {
		return TraceIdentity{}, fmt.Errorf("%w: %d trailing bytes after trace identity", ErrMalformedKey, len(rest))
	}
	return TraceIdentity{TenantID: tenant, TraceID: traceID}, nil
}

func DecodeSpanIdentity(key []byte) (SpanIdentity, error) {
	tenant, traceID, rest, err := readTraceIdentity(key)
	if err != nil {
		return SpanIdentity{}, err
	}
	spanID, rest, err := readField(rest)
	if err != nil {
		return SpanIdentity{}, err
	}
	if len(rest) != 0 {
		return SpanIdentity{}, fmt.Errorf("%w: %d trailing bytes after span identity", ErrMalformedKey, len(rest))
	}
	return SpanIdentity{TenantID: tenant, TraceID: traceID, SpanID: spanID}, nil
}

func appendTraceIdentity(buf []byte, tenant string, traceID []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(tenant)))
	buf = append(buf, tenant...)
	buf = binary.AppendUvarint(buf, uint64(len(traceID)))
	return append(buf, traceID...)
}

func readTraceIdentity(key []byte) (string, []byte, []byte, error) {
	tenant, rest, err := readField(key)
	if err != nil {
		return "", nil, nil, err
	}
	traceID, rest, err := readField(rest)
	if err != nil {
		return "", nil, nil, err
	}
	return string(tenant), traceID, rest, nil
}

func readField(buf []byte) ([]byte, []byte, error) {
	n, read := binary.Uvarint(buf)
	if read <= 0 {
		return nil, nil, fmt.Errorf("%w: bad length prefix", ErrMalformedKey)
	}
	buf = buf[read:]
	if uint64(len(buf)) < n {
		return nil, nil, fmt.Errorf("%w: field length %d exceeds remaining %d bytes", ErrMalformedKey, n, len(buf))
	}
	field := make([]byte, n)
	copy(field, buf[:n])
	return field, buf[n:], nil
}
