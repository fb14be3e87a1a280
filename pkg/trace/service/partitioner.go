package service

import (
	"context"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/cespare/xxhash/v2"
)

type SpanRouter interface {
	Route(ctx context.Context, span model.RawSpan) error
}

// Partitioner sends every span of a trace to the same task. The assignment
// depends on the number of tasks, which must not change across restarts or
// persisted traces end up on a task that does not own their stores.
type Partitioner struct {
	tasks []*Task
}

func NewPartitioner(tasks []*Task) *Partitioner {
	return &Partitioner{tasks: tasks}
}

func PartitionFor(id model.TraceIdentity, partitions int) int {
	return int(xxhash.Sum64(model.EncodeTraceIdentity(id)) % uint64(partitions))
}

func (p *Partitioner) Route(ctx context.Context, span model.RawSpan) error {
	task := p.tasks[PartitionFor(span.TraceIdentity(), len(p.tasks))]
	return task.Submit(ctx, span)
}
