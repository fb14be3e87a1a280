package cache

import (
	"errors"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/trace/model"
	"github.com/dgraph-io/ristretto"
	"time"
)

// EmittedTraceCache remembers recently emitted traces so that spans arriving
// after emission can be recognised. Entries may be evicted at any time, a miss
// only means the trace is not known to be emitted.
type EmittedTraceCache interface {
	Remember(id model.TraceIdentity) error
	Contains(id model.TraceIdentity) bool
}

type EmittedTraceCacheImpl struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewEmittedTraceCacheImpl(maxTraces int64, ttl time.Duration) (*EmittedTraceCacheImpl, error) {
	if maxTraces <= 0 {
		return nil, fmt.Errorf("max traces must be positive, got %d", maxTraces)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxTraces * 10,
		MaxCost:            maxTraces,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create emitted trace cache: %w", err)
	}
	return &EmittedTraceCacheImpl{cache: cache, ttl: ttl}, nil
}

func (c *EmittedTraceCacheImpl) Remember(id model.TraceIdentity) error {
	if !c.cache.SetWithTTL(id.String(), struct{}{}, 1, c.ttl) {
		return ErrSetFailed
	}
	return nil
}

func (c *EmittedTraceCacheImpl) Contains(id model.TraceIdentity) bool {
	_, found := c.cache.Get(id.String())
	return found
}

// Wait blocks until buffered writes are visible to Contains.
func (c *EmittedTraceCacheImpl) Wait() {
	c.cache.Wait()
}

func (c *EmittedTraceCacheImpl) Close() {
	c.cache.Close()
}

// NoopEmittedTraceCache is used when the cache is disabled.
type NoopEmittedTraceCache struct{}

func (NoopEmittedTraceCache) Remember(model.TraceIdentity) error { return nil }

func (NoopEmittedTraceCache) Contains(model.TraceIdentity) bool { return false }

var ErrSetFailed = errors.New("failed to set value in cache")
