package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelmgrd/internal/convcache"
	"modelmgrd/pkg/types"
)

// Manager governs the lifecycle of budgeted model instances. One mutex guards
// the catalog, budget and per-model state; cond serializes in-flight
// transitions per model (waiters re-check status after every wake-up).
type Manager struct {
	mu   sync.Mutex
	cond sync.Cond

	models map[string]*model
	order  []string // registration order, drives selection tie-breaks
	budget budget

	runtime   Runtime
	cache     *convcache.Cache
	predictor *usagePredictor
	pub       EventPublisher
	log       zerolog.Logger

	defaultModel        string
	defaultIdleTimeout  time.Duration
	memoryCheckInterval time.Duration
	lookaheadInterval   time.Duration
	drainTimeout        time.Duration

	loadsTotal     uint64
	evictionsTotal uint64

	started   bool
	startTime time.Time
	nowFn     func() time.Time
}

func (m *Manager) now() time.Time { return m.nowFn() }

// Run starts the background loops (idle reaper, prefetcher) and blocks until
// ctx is canceled. Each loop isolates per-tick failures.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.runIdleReaper(ctx)
	}()
	go func() {
		defer wg.Done()
		m.runPrefetcher(ctx)
	}()
	wg.Wait()
}

// Ready reports whether the manager is serving (background loops started).
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Close unloads every online model. Used on graceful shutdown.
func (m *Manager) Close(ctx context.Context) {
	for _, v := range m.ListModels() {
		if v.Status == types.StatusOnline || v.Status == types.StatusLoading {
			if err := m.Unload(ctx, v.ID); err != nil {
				m.log.Warn().Str("model", v.ID).Err(err).Msg("shutdown unload failed")
			}
		}
	}
}
