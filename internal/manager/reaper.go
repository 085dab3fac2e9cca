package manager

import (
	"context"
	"time"

	"modelmgrd/pkg/types"
)

// runIdleReaper unloads models idle past their timeout, once per
// memoryCheckInterval. A panic or failed unload in one tick is logged and the
// loop carries on; failures retry naturally on the next tick.
func (m *Manager) runIdleReaper(ctx context.Context) {
	ticker := time.NewTicker(m.memoryCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapTick(ctx)
		}
	}
}

func (m *Manager) reapTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Any("panic", r).Msg("idle reaper tick panicked")
		}
	}()
	for _, id := range m.reapIdleOnce() {
		m.pub.Publish(Event{Name: EventReap, ModelID: id, At: m.now()})
		m.log.Info().Str("model", id).Msg("reaping idle model")
		if err := m.Unload(ctx, id); err != nil {
			m.log.Warn().Str("model", id).Err(err).Msg("idle unload failed; will retry next tick")
			continue
		}
		m.mu.Lock()
		m.evictionsTotal++
		m.mu.Unlock()
		metricEvictionsTotal.Inc()
	}
}

// reapIdleOnce returns the online models whose idle time exceeds their
// timeout. Pure bookkeeping under the lock; the unloads happen outside it.
func (m *Manager) reapIdleOnce() []string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var idle []string
	for _, id := range m.order {
		mdl := m.models[id]
		if mdl.status != types.StatusOnline {
			continue
		}
		if now.Sub(mdl.lastUsed) > mdl.idleTimeout(m.defaultIdleTimeout) {
			idle = append(idle, id)
		}
	}
	return idle
}
