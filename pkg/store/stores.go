package store

import (
	"errors"
	"io"
)

// Stores is the pair of stores owned by one task.
type Stores struct {
	Spans       *SpanStore
	TraceStates *TraceStateStore
	closers     []io.Closer
}

// NewStores wraps the span and trace state backends. closers release the
// resources the backends live in and run after the backends are closed.
func NewStores(spans Backend, traceStates Backend, closers ...io.Closer) *Stores {
	return &Stores{
		Spans:       NewSpanStore(spans),
		TraceStates: NewTraceStateStore(traceStates),
		closers:     append([]io.Closer{spans, traceStates}, closers...),
	}
}

func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
