package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cache "simflow/internal/cache/iface"
	"simflow/internal/logger"

	"github.com/google/uuid"
)

// ErrRunInFlight is returned when a run id is already being executed.
var ErrRunInFlight = errors.New("run already in flight")

// RunGuard ensures a run id is executed by at most one caller at a time.
type RunGuard interface {
	// Acquire claims runID. The returned release must be called exactly once.
	Acquire(ctx context.Context, runID string) (release func(), err error)
}

type memoryRunGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewMemoryRunGuard guards run ids within this process only.
func NewMemoryRunGuard() RunGuard {
	return &memoryRunGuard{running: make(map[string]struct{})}
}

func (g *memoryRunGuard) Acquire(_ context.Context, runID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[runID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrRunInFlight, runID)
	}
	g.running[runID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, runID)
			g.mu.Unlock()
		})
	}, nil
}

type cacheRunGuard struct {
	cache  cache.Cache
	ttl    time.Duration
	logger logger.Logger
}

// NewCacheRunGuard guards run ids across coordinator replicas with a Redis
// key per run. The holder renews the key every ttl/3, so ttl only bounds how
// long a crashed holder blocks the id.
func NewCacheRunGuard(c cache.Cache, ttl time.Duration, log logger.Logger) RunGuard {
	return &cacheRunGuard{
		cache:  c,
		ttl:    ttl,
		logger: log.With(logger.String("component", "run_guard")),
	}
}

func (g *cacheRunGuard) Acquire(ctx context.Context, runID string) (func(), error) {
	key := "run:" + runID
	token := uuid.NewString()

	ok, err := g.cache.SetNX(ctx, key, token, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run guard: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunInFlight, runID)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.renew(stop, runID, key, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := g.cache.CompareAndDelete(releaseCtx, key, token); err != nil {
				g.logger.Warn("failed to release run guard",
					logger.String("run_id", runID),
					logger.Error(err))
			}
		})
	}, nil
}

// renew extends the guard key until stop is closed or the key is lost.
func (g *cacheRunGuard) renew(stop <-chan struct{}, runID, key, token string) {
	ticker := time.NewTicker(max(g.ttl/3, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			held, err := g.cache.CompareAndExpire(ctx, key, token, g.ttl)
			cancel()
			if err != nil {
				g.logger.Warn("failed to renew run guard",
					logger.String("run_id", runID),
					logger.Error(err))
				continue
			}
			if !held {
				g.logger.Warn("run guard lost before the run finished", logger.String("run_id", runID))
				return
			}
		}
	}
}
