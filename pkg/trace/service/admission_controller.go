package service

import (
	"github.com/Avi18971911/spangrouper/pkg/metrics"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"go.uber.org/zap"
	"math"
)

const UnboundedSpanCount int64 = math.MaxInt64

// SpanLimits caps the number of spans buffered per trace. A tenant without an
// override uses Default, a non positive Default means unbounded.
type SpanLimits struct {
	PerTenant map[string]int64
	Default   int64
}

func (l SpanLimits) Limit(tenant string) int64 {
	if limit, ok := l.PerTenant[tenant]; ok {
		return limit
	}
	if l.Default <= 0 {
		return UnboundedSpanCount
	}
	return l.Default
}

type AdmissionController interface {
	// Admit decides whether a span for the trace may be buffered, given the
	// current state of the trace or nil when the trace is not open.
	Admit(id model.TraceIdentity, state *model.TraceState) bool
	// Release forgets the trace once it has been emitted.
	Release(id model.TraceIdentity)
}

// AdmissionControllerImpl belongs to a single task. It remembers which open
// traces were already counted as truncated, so a trace is counted once no
// matter how many spans it drops. The memory is lost on restart.
type AdmissionControllerImpl struct {
	limits    SpanLimits
	truncated map[string]struct{}
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewAdmissionController(limits SpanLimits, metrics *metrics.Metrics, logger *zap.Logger) AdmissionController {
	return &AdmissionControllerImpl{
		limits:    limits,
		truncated: make(map[string]struct{}),
		metrics:   metrics,
		logger:    logger,
	}
}

func (ac *AdmissionControllerImpl) Admit(id model.TraceIdentity, state *model.TraceState) bool {
	if state == nil {
		return true
	}
	limit := ac.limits.Limit(id.TenantID)
	count := int64(state.SpanCount())
	if count < limit {
		return true
	}
	ac.metrics.SpanDropped(id.TenantID)
	if count == limit {
		key := id.String()
		if _, counted := ac.truncated[key]; !counted {
			ac.truncated[key] = struct{}{}
			ac.metrics.TraceTruncated(id.TenantID)
		}
	}
	ac.logger.Debug(
		"Dropped span of trace at its span limit",
		zap.String("trace", id.String()),
		zap.Int64("limit", limit),
	)
	return false
}

func (ac *AdmissionControllerImpl) Release(id model.TraceIdentity) {
	delete(ac.truncated, id.String())
}
