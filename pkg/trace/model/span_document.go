package model

import "time"

type StatusCode string

const (
	UNSET StatusCode = "UNSET"
	OK    StatusCode = "OK"
	ERROR StatusCode = "ERROR"
)

type Status struct {
	Message string     `json:"message"`
	Code    StatusCode `json:"code"`
}

// SpanDocument is the searchable form of one span inside an indexed trace.
type SpanDocument struct {
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id"`
	TraceID      string            `json:"trace_id"`
	ServiceName  string            `json:"service_name"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	ActionName   string            `json:"action_name"`
	SpanKind     string            `json:"span_kind"`
	Status       Status            `json:"status"`
	Attributes   map[string]string `json:"attributes"`
	Events       []SpanEvent       `json:"events"`
}

type SpanEvent struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// TraceDocument is the document indexed for one emitted trace.
type TraceDocument struct {
	Id        string         `json:"_id,omitempty"`
	TenantID  string         `json:"tenant_id"`
	TraceID   string         `json:"trace_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	EmittedAt time.Time      `json:"emitted_at"`
	SpanCount int            `json:"span_count"`
	Spans     []SpanDocument `json:"spans"`
}
