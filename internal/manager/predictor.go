package manager

import (
	"sort"
	"sync"
	"time"
)

// usagePredictor keeps a sliding window of usage events per model and
// predicts near-future demand from in-window frequency. It has its own small
// lock so recording usage never contends with model transitions.
type usagePredictor struct {
	mu     sync.Mutex
	window time.Duration
	events map[string][]time.Time
	nowFn  func() time.Time
}

func newUsagePredictor(window time.Duration) *usagePredictor {
	return &usagePredictor{
		window: window,
		events: make(map[string][]time.Time),
		nowFn:  time.Now,
	}
}

// record appends a usage event and prunes that model's history to the window.
func (p *usagePredictor) record(modelID string) {
	now := p.nowFn()
	cutoff := now.Add(-p.window)
	p.mu.Lock()
	defer p.mu.Unlock()
	evs := append(p.events[modelID], now)
	i := 0
	for i < len(evs) && evs[i].Before(cutoff) {
		i++
	}
	p.events[modelID] = evs[i:]
}

// predict returns up to predictTopN model ids by in-window event count,
// descending; ties break toward the most recently used model. Empty history
// yields an empty slice.
func (p *usagePredictor) predict() []string {
	now := p.nowFn()
	cutoff := now.Add(-p.window)
	type scored struct {
		id     string
		count  int
		latest time.Time
	}
	p.mu.Lock()
	var ranked []scored
	for id, evs := range p.events {
		count := 0
		var latest time.Time
		for _, t := range evs {
			if t.Before(cutoff) {
				continue
			}
			count++
			if t.After(latest) {
				latest = t
			}
		}
		if count > 0 {
			ranked = append(ranked, scored{id: id, count: count, latest: latest})
		}
	}
	p.mu.Unlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].latest.After(ranked[j].latest)
	})
	n := len(ranked)
	if n > predictTopN {
		n = predictTopN
	}
	out := make([]string, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, s.id)
	}
	return out
}

// RecordUsage registers a usage event for a registered model.
func (m *Manager) RecordUsage(id string) error {
	m.mu.Lock()
	_, ok := m.models[id]
	m.mu.Unlock()
	if !ok {
		return ErrModelNotFound(id)
	}
	m.predictor.record(id)
	m.pub.Publish(Event{Name: EventUsage, ModelID: id, At: m.now()})
	return nil
}

// Predict returns the models most likely to be requested soon.
func (m *Manager) Predict() []string {
	return m.predictor.predict()
}
