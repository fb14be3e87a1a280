package scheduler

import (
	"container/heap"
	"context"
	"time"
)

// Punctuator is a callback fired once its due time has passed.
type Punctuator interface {
	Punctuate(ctx context.Context, now time.Time) error
}

type PunctuatorFunc func(ctx context.Context, now time.Time) error

func (f PunctuatorFunc) Punctuate(ctx context.Context, now time.Time) error {
	return f(ctx, now)
}

// Scheduler fires one-shot punctuators in due order. It is not safe for
// concurrent use, the owning task drives it from a single goroutine.
type Scheduler struct {
	entries entryHeap
	seq     uint64
	now     func() time.Time
}

func NewScheduler(now func() time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// Schedule arms p to fire delay after the current time.
func (s *Scheduler) Schedule(delay time.Duration, p Punctuator) {
	s.ScheduleAt(s.now().Add(delay), p)
}

func (s *Scheduler) ScheduleAt(due time.Time, p Punctuator) {
	s.seq++
	heap.Push(&s.entries, &entry{due: due, seq: s.seq, punctuator: p})
}

// NextDue reports the earliest due time, if any entry is armed.
func (s *Scheduler) NextDue() (time.Time, bool) {
	if len(s.entries) == 0 {
		return time.Time{}, false
	}
	return s.entries[0].due, true
}

// RunDue fires every entry due at or before now. Entries are removed before
// they fire, so a punctuator may schedule itself again. Entries armed during
// the run fire in the same run only when already due. The first error stops
// the run and is returned.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) (int, error) {
	fired := 0
	for len(s.entries) > 0 && !s.entries[0].due.After(now) {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		e := heap.Pop(&s.entries).(*entry)
		fired++
		if err := e.punctuator.Punctuate(ctx, now); err != nil {
			return fired, err
		}
	}
	return fired, nil
}

func (s *Scheduler) Len() int {
	return len(s.entries)
}

type entry struct {
	due        time.Time
	seq        uint64
	punctuator Punctuator
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
