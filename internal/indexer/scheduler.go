package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/metrics"
)

// Scheduler runs rebuilds in the background, decoupled from the requests that trigger them.
// At most one rebuild per tenant is in flight; triggers arriving meanwhile are
// coalesced into a single follow-up run that sees the latest notes.
type Scheduler struct {
	rebuilder Rebuilder
	sem       *semaphore.Weighted
	timeout   time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	states map[string]*tenantState
	closed bool
}

type tenantState struct {
	// pending is set when a run is owed and has not started yet.
	pending bool
}

// NewScheduler creates a Scheduler running at most concurrency rebuilds at
// once, each bounded by timeout. A non-positive timeout disables the bound.
func NewScheduler(rebuilder Rebuilder, concurrency int, timeout time.Duration) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		rebuilder: rebuilder,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		timeout:   timeout,
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		states:    make(map[string]*tenantState),
	}
}

// Trigger schedules a rebuild of the tenant and returns immediately.
func (s *Scheduler) Trigger(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("rebuild trigger ignored, scheduler closed", "tenant_id", tenantID)
		return
	}

	st, ok := s.states[tenantID]
	if !ok {
		s.states[tenantID] = &tenantState{pending: true}
		metrics.RebuildsPending.Inc()
		s.wg.Add(1)
		go s.run(tenantID)
		return
	}
	if !st.pending {
		st.pending = true
		metrics.RebuildsPending.Inc()
	}
}

// Wait blocks until every scheduled rebuild, including follow-ups, has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops accepting triggers and waits for in-flight rebuilds.
// If ctx ends first, running rebuilds are cancelled and ctx's error is returned.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("rebuilds cancelled on shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) run(tenantID string) {
	defer s.wg.Done()

	for {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.mu.Lock()
			if st := s.states[tenantID]; st != nil && st.pending {
				metrics.RebuildsPending.Dec()
			}
			delete(s.states, tenantID)
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		s.states[tenantID].pending = false
		s.mu.Unlock()
		metrics.RebuildsPending.Dec()

		s.rebuildOnce(tenantID)
		s.sem.Release(1)

		s.mu.Lock()
		if !s.states[tenantID].pending {
			delete(s.states, tenantID)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) rebuildOnce(tenantID string) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	logger := s.logger.With("tenant_id", tenantID)
	ctx = contextutil.WithLogger(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "index rebuild panicked", "panic", r)
		}
	}()

	if _, err := s.rebuilder.Rebuild(ctx, tenantID); err != nil {
		// Builder already logged and counted the failure.
		logger.DebugContext(ctx, "scheduled rebuild did not complete", "error", err)
	}
}
