package manager

import (
	"context"
	"time"

	"modelmgrd/internal/common/fsutil"
	"modelmgrd/pkg/types"
)

// Load makes a model resident. Idempotent when the model is already online.
// At most one load/unload is in flight per model: a concurrent caller waits
// on the manager condition and re-checks the status after every wake-up.
func (m *Manager) Load(ctx context.Context, id string) error {
	m.mu.Lock()
	mdl, ok := m.models[id]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	for mdl.status == types.StatusLoading || mdl.status == types.StatusUnloading {
		m.cond.Wait()
	}
	if mdl.status == types.StatusOnline {
		mdl.lastUsed = m.now()
		m.mu.Unlock()
		return nil
	}

	desc := mdl.desc
	if !fsutil.PathExists(desc.Path) {
		m.mu.Unlock()
		err := artifactMissingError{id: id, path: desc.Path}
		m.reportError(KindArtifactMissing, id, err)
		return err
	}
	reqMB := estimateVRAMMB(desc)
	if !m.budget.canAccommodate(reqMB) {
		free := m.budget.freeMB()
		m.mu.Unlock()
		err := budgetExceededError{id: id, requiredMB: reqMB, freeMB: free}
		m.reportError(KindBudgetExceeded, id, err)
		return err
	}
	// Hold the required MB while loading so an overlapping admission check on
	// another model cannot overshoot the ceiling.
	m.budget.hold(reqMB)
	mdl.status = types.StatusLoading
	m.mu.Unlock()

	m.pub.Publish(Event{Name: EventLoadStart, ModelID: id, At: m.now()})
	m.log.Info().Str("model", id).Int("est_vram_mb", reqMB).Msg("loading model")

	handle, loadErr := m.runtime.Load(ctx, desc)

	m.mu.Lock()
	m.budget.unhold(reqMB)
	if loadErr != nil {
		mdl.status = types.StatusFailed
		m.cond.Broadcast()
		m.mu.Unlock()
		err := runtimeError{kind: KindRuntimeLoad, id: id, err: loadErr}
		metricLoadFailuresTotal.Inc()
		m.pub.Publish(Event{Name: EventLoadFail, ModelID: id, At: m.now(), Fields: map[string]any{"error": loadErr.Error()}})
		m.reportError(KindRuntimeLoad, id, err)
		m.log.Error().Str("model", id).Err(loadErr).Msg("model load failed")
		return err
	}
	mdl.status = types.StatusOnline
	mdl.handle = handle
	mdl.vramUsedMB = reqMB
	m.budget.reserve(reqMB)
	mdl.lastUsed = m.now()
	mdl.loadCount++
	m.loadsTotal++
	m.cond.Broadcast()
	used := m.budget.usedMB
	m.mu.Unlock()

	metricLoadsTotal.Inc()
	metricVRAMUsedMB.Set(float64(used))
	metricModelsOnline.Inc()
	m.pub.Publish(Event{Name: EventLoadOK, ModelID: id, At: m.now(), Fields: map[string]any{"vram_mb": reqMB}})
	m.log.Info().Str("model", id).Int("vram_mb", reqMB).Msg("model online")
	return nil
}

// Unload releases a resident model. A no-op success unless the model is
// online. In-flight generations drain first (bounded by drainTimeout; new
// ones cannot start once the status flips to unloading). The budget
// reservation is reclaimed even when the runtime release fails, trading
// strict accounting for availability; the failure is reported.
func (m *Manager) Unload(ctx context.Context, id string) error {
	m.mu.Lock()
	mdl, ok := m.models[id]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	for mdl.status == types.StatusLoading || mdl.status == types.StatusUnloading {
		m.cond.Wait()
	}
	if mdl.status != types.StatusOnline {
		m.mu.Unlock()
		return nil
	}
	mdl.status = types.StatusUnloading
	handle := mdl.handle
	reclaimMB := mdl.vramUsedMB
	m.mu.Unlock()

	m.pub.Publish(Event{Name: EventUnloadStart, ModelID: id, At: m.now()})
	m.drainGenerations(mdl, id)
	unloadErr := m.runtime.Unload(ctx, handle)

	m.mu.Lock()
	if leak := m.budget.release(reclaimMB); leak > 0 {
		m.log.Error().Str("model", id).Int("leak_mb", leak).Msg("released more VRAM than reserved")
		m.pub.Publish(Event{Name: EventBudgetViolated, ModelID: id, At: m.now(), Fields: map[string]any{"leak_mb": leak}})
	}
	mdl.vramUsedMB = 0
	mdl.handle = nil
	mdl.status = types.StatusAvailable
	m.cond.Broadcast()
	used := m.budget.usedMB
	m.mu.Unlock()

	metricVRAMUsedMB.Set(float64(used))
	metricModelsOnline.Dec()
	if m.cache != nil {
		// Cached conversation state references the unloaded instance; evict
		// eagerly rather than hand stale blobs to the next load.
		m.cache.InvalidateModel(id)
	}
	if unloadErr != nil {
		err := runtimeError{kind: KindRuntimeUnload, id: id, err: unloadErr}
		m.pub.Publish(Event{Name: EventUnloadFail, ModelID: id, At: m.now(), Fields: map[string]any{"error": unloadErr.Error()}})
		m.reportError(KindRuntimeUnload, id, err)
		m.log.Warn().Str("model", id).Err(unloadErr).Msg("runtime unload failed; budget reclaimed anyway")
		return nil
	}
	metricUnloadsTotal.Inc()
	m.pub.Publish(Event{Name: EventUnloadOK, ModelID: id, At: m.now(), Fields: map[string]any{"vram_mb": reclaimMB}})
	m.log.Info().Str("model", id).Int("vram_mb", reclaimMB).Msg("model unloaded")
	return nil
}

// drainGenerations waits for the model's in-flight generations to finish so
// the runtime never releases a handle mid-generation. On timeout the unload
// proceeds anyway; a wedged generation must not pin VRAM forever.
func (m *Manager) drainGenerations(mdl *model, id string) {
	deadline := time.Now().Add(m.drainTimeout)
	for {
		m.mu.Lock()
		inflight := mdl.inflight
		m.mu.Unlock()
		if inflight == 0 {
			return
		}
		if time.Now().After(deadline) {
			m.pub.Publish(Event{Name: EventUnloadTimeout, ModelID: id, At: m.now(), Fields: map[string]any{"inflight": inflight}})
			m.log.Warn().Str("model", id).Int("inflight", inflight).Msg("drain timed out; unloading anyway")
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Preload loads each model best-effort and reports per-model outcomes.
func (m *Manager) Preload(ctx context.Context, ids []string) types.PreloadResponse {
	resp := types.PreloadResponse{}
	for _, id := range ids {
		if err := m.Load(ctx, id); err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[id] = string(KindOf(err))
			continue
		}
		resp.Loaded = append(resp.Loaded, id)
	}
	return resp
}

// estimateVRAMMB prefers the descriptor estimate and falls back to the
// artifact size on disk, with a conservative 1MB floor so budget checks are
// never bypassed by an unknown size.
func estimateVRAMMB(desc types.ModelDescriptor) int {
	if desc.EstVRAMMB > 0 {
		return desc.EstVRAMMB
	}
	if mb := fsutil.FileSizeMB(desc.Path); mb > 0 {
		return mb
	}
	return 1
}
