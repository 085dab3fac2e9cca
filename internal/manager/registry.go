package manager

import (
	"fmt"

	"modelmgrd/pkg/types"
)

// Register adds a descriptor to the catalog. Descriptors are immutable once
// registered; a duplicate id is rejected so live state is never re-seeded.
func (m *Manager) Register(desc types.ModelDescriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("descriptor has empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.models[desc.ID]; exists {
		return fmt.Errorf("model %s already registered", desc.ID)
	}
	m.models[desc.ID] = &model{
		desc:     desc,
		regIndex: len(m.order),
		status:   types.StatusAvailable,
	}
	m.order = append(m.order, desc.ID)
	m.log.Info().Str("model", desc.ID).Str("path", desc.Path).Msg("registered model")
	return nil
}

// Get returns the descriptor for a model id.
func (m *Manager) Get(id string) (types.ModelDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mdl, ok := m.models[id]
	if !ok {
		return types.ModelDescriptor{}, ErrModelNotFound(id)
	}
	return mdl.desc, nil
}

// SelectModel picks the best model for a task type. Candidates must advertise
// the capability; when minContextSize is set the candidate set narrows to
// models with at least that window, falling back to the full capability set
// when the narrowing empties it. Online models win over not-loaded ones;
// within a class, higher descriptor priority wins, then registration order.
func (m *Manager) SelectModel(taskType string, minContextSize int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var capable []*model
	for _, id := range m.order {
		if mdl := m.models[id]; mdl.desc.HasCapability(taskType) {
			capable = append(capable, mdl)
		}
	}
	if len(capable) == 0 {
		return "", ErrModelNotFound("capability " + taskType)
	}

	candidates := capable
	if minContextSize > 0 {
		var narrowed []*model
		for _, mdl := range capable {
			if mdl.desc.ContextLength >= minContextSize {
				narrowed = append(narrowed, mdl)
			}
		}
		if len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	best := candidates[0]
	for _, mdl := range candidates[1:] {
		if preferModel(mdl, best) {
			best = mdl
		}
	}
	return best.desc.ID, nil
}

// preferModel reports whether a should replace b as the selection.
func preferModel(a, b *model) bool {
	ca, cb := selectionClass(a), selectionClass(b)
	if ca != cb {
		return ca < cb
	}
	if a.desc.Priority != b.desc.Priority {
		return a.desc.Priority > b.desc.Priority
	}
	return a.regIndex < b.regIndex
}

// selectionClass orders statuses by desirability: online first, then directly
// loadable, then everything in flight or failed.
func selectionClass(mdl *model) int {
	switch mdl.status {
	case types.StatusOnline:
		return 0
	case types.StatusAvailable:
		return 1
	default:
		return 2
	}
}
