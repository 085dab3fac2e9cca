package manager

import (
	"context"
	"time"

	"modelmgrd/pkg/types"
)

// runPrefetcher asks the predictor for likely-next models every
// lookaheadInterval and preloads them best-effort. A model that cannot be
// admitted is skipped until the next tick; prefetching never retries within a
// tick, so it cannot starve foreground requests of budget.
func (m *Manager) runPrefetcher(ctx context.Context) {
	ticker := time.NewTicker(m.lookaheadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.prefetchTick(ctx)
		}
	}
}

func (m *Manager) prefetchTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Any("panic", r).Msg("prefetcher tick panicked")
		}
	}()
	for _, id := range m.Predict() {
		m.mu.Lock()
		mdl, ok := m.models[id]
		online := ok && mdl.status == types.StatusOnline
		m.mu.Unlock()
		if !ok || online {
			continue
		}
		metricPrefetchAttemptsTotal.Inc()
		if err := m.Load(ctx, id); err != nil {
			m.pub.Publish(Event{Name: EventPrefetchSkip, ModelID: id, At: m.now(), Fields: map[string]any{"kind": string(KindOf(err))}})
			if IsBudgetExceeded(err) {
				m.log.Debug().Str("model", id).Msg("prefetch skipped: no budget headroom")
			} else {
				m.log.Warn().Str("model", id).Err(err).Msg("prefetch load failed")
			}
			continue
		}
		m.pub.Publish(Event{Name: EventPrefetch, ModelID: id, At: m.now()})
	}
}
