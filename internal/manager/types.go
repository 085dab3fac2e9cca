package manager

import (
	"time"

	"modelmgrd/pkg/types"
)

// model pairs an immutable descriptor with its mutable live state. Owned by
// the Manager; callers only ever see snapshots.
type model struct {
	desc     types.ModelDescriptor
	regIndex int

	status     types.ModelStatus
	vramUsedMB int
	lastUsed   time.Time
	loadCount  int
	// Generations currently executing against handle. Unload drains this to
	// zero before releasing the handle.
	inflight int

	handle ModelHandle
}

func (m *model) view() types.ModelStateView {
	v := types.ModelStateView{
		ModelDescriptor: m.desc,
		Status:          m.status,
		VRAMUsedMB:      m.vramUsedMB,
		LoadCount:       m.loadCount,
	}
	if !m.lastUsed.IsZero() {
		v.LastUsedUnix = m.lastUsed.Unix()
	}
	return v
}

// idleTimeout returns the per-model timeout, falling back to the manager
// default when the descriptor does not set one.
func (m *model) idleTimeout(def time.Duration) time.Duration {
	if m.desc.IdleTimeoutSeconds > 0 {
		return time.Duration(m.desc.IdleTimeoutSeconds) * time.Second
	}
	return def
}
