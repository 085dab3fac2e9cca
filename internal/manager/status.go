package manager

import (
	"sort"

	"modelmgrd/pkg/types"
)

// ListModels returns snapshots of every registered model in registration order.
func (m *Manager) ListModels() []types.ModelStateView {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ModelStateView, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.models[id].view())
	}
	return out
}

// GetModel returns a snapshot of one model's descriptor and live state.
func (m *Manager) GetModel(id string) (types.ModelStateView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mdl, ok := m.models[id]
	if !ok {
		return types.ModelStateView{}, ErrModelNotFound(id)
	}
	return mdl.view(), nil
}

// Status builds the get_status response.
func (m *Manager) Status() types.StatusResponse {
	now := m.now()
	m.mu.Lock()
	resp := types.StatusResponse{
		VRAMUsedMB:     m.budget.usedMB,
		VRAMBudgetMB:   m.budget.limitMB(),
		MinFreeMB:      m.budget.minFreeMB,
		Device:         m.runtime.Device(),
		LoadsTotal:     m.loadsTotal,
		EvictionsTotal: m.evictionsTotal,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	resp.Models = make([]types.ModelStateView, 0, len(m.order))
	for _, id := range m.order {
		mdl := m.models[id]
		switch mdl.status {
		case types.StatusOnline:
			resp.LoadedCount++
		case types.StatusLoading:
			resp.LoadingCount++
		case types.StatusUnloading:
			resp.UnloadingCount++
		}
		resp.Models = append(resp.Models, mdl.view())
	}
	m.mu.Unlock()

	if m.cache != nil {
		resp.CacheEntries = m.cache.Len()
	}
	sort.SliceStable(resp.Models, func(i, j int) bool {
		return resp.Models[i].Status == types.StatusOnline && resp.Models[j].Status != types.StatusOnline
	})
	return resp
}
