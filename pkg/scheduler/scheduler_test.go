package scheduler

import (
	"context"
	"errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
	"sort"
	"testing"
	"time"
)

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	t.Run("should fire nothing before the due time", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := NewScheduler(clock.Now)
		called := false
		s.Schedule(time.Second, PunctuatorFunc(func(context.Context, time.Time) error {
			called = true
			return nil
		}))

		fired, err := s.RunDue(ctx, clock.Now().Add(999*time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, 0, fired)
		assert.False(t, called)

		due, ok := s.NextDue()
		require.True(t, ok)
		assert.Equal(t, clock.Now().Add(time.Second), due)
	})

	t.Run("should fire due entries in due order and insertion order on ties", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := NewScheduler(clock.Now)
		var order []string
		record := func(name string) Punctuator {
			return PunctuatorFunc(func(context.Context, time.Time) error {
				order = append(order, name)
				return nil
			})
		}
		s.Schedule(2*time.Second, record("c"))
		s.Schedule(time.Second, record("a"))
		s.Schedule(time.Second, record("b"))
		s.Schedule(time.Minute, record("late"))

		fired, err := s.RunDue(ctx, clock.Now().Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 3, fired)
		assert.Equal(t, []string{"a", "b", "c"}, order)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("should let a punctuator re-arm itself", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := NewScheduler(clock.Now)
		calls := 0
		var p PunctuatorFunc
		p = func(context.Context, time.Time) error {
			calls++
			if calls < 3 {
				s.Schedule(time.Second, p)
			}
			return nil
		}
		s.Schedule(time.Second, p)

		for i := 0; i < 5; i++ {
			clock.Advance(time.Second)
			_, err := s.RunDue(ctx, clock.Now())
			require.NoError(t, err)
		}
		assert.Equal(t, 3, calls)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("should stop at the first error", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := NewScheduler(clock.Now)
		boom := errors.New("boom")
		s.Schedule(time.Second, PunctuatorFunc(func(context.Context, time.Time) error { return boom }))
		s.Schedule(2*time.Second, PunctuatorFunc(func(context.Context, time.Time) error { return nil }))

		fired, err := s.RunDue(ctx, clock.Now().Add(time.Hour))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, fired)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("should fire in non decreasing due order", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			clock := clockwork.NewFakeClock()
			s := NewScheduler(clock.Now)
			delays := rapid.SliceOf(rapid.IntRange(0, 10_000)).Draw(t, "delays")
			var dues []time.Time
			for _, d := range delays {
				due := clock.Now().Add(time.Duration(d) * time.Millisecond)
				s.ScheduleAt(due, PunctuatorFunc(func(context.Context, time.Time) error {
					dues = append(dues, due)
					return nil
				}))
			}
			fired, err := s.RunDue(context.Background(), clock.Now().Add(10*time.Second))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fired != len(delays) {
				t.Fatalf("fired %d of %d entries", fired, len(delays))
			}
			if !sort.SliceIsSorted(dues, func(i, j int) bool { return dues[i].Before(dues[j]) }) {
				t.Fatalf("entries fired out of order: %v", dues)
			}
		})
	})
}
