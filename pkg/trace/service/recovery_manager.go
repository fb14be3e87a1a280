package service

import (
	"context"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/metrics"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"time"
)

type RecoveryManager interface {
	// Restore arms one timer per persisted trace and returns how many it armed.
	Restore(ctx context.Context) (int, error)
}

type RecoveryManagerImpl struct {
	traceStates *store.TraceStateStore
	timers      TraceEmitScheduler
	window      time.Duration
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewRecoveryManager(
	traceStates *store.TraceStateStore,
	timers TraceEmitScheduler,
	window time.Duration,
	clock clockwork.Clock,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) RecoveryManager {
	return &RecoveryManagerImpl{
		traceStates: traceStates,
		timers:      timers,
		window:      window,
		clock:       clock,
		metrics:     metrics,
		logger:      logger,
	}
}

// Restore gives every persisted trace a fresh full window, regardless of the
// deadline it had before the restart.
func (rm *RecoveryManagerImpl) Restore(ctx context.Context) (int, error) {
	start := rm.clock.Now()
	count := 0
	err := rm.traceStates.All(ctx, func(id model.TraceIdentity, _ model.TraceState) error {
		rm.timers.Arm(id, rm.window)
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to restore punctuators: %w", err)
	}
	rm.metrics.PunctuatorsRestored(count)
	rm.logger.Info(
		"Restored punctuators",
		zap.Int("count", count),
		zap.Duration("duration", rm.clock.Since(start)),
	)
	return count, nil
}
