package manager

import "time"

// Event is a manager lifecycle or diagnostic record.
// Minimal and stable: name + model id and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	At      time.Time
	Fields  map[string]any
}

// Well-known event names published by the manager. Sinks may filter on them.
const (
	EventLoadStart      = "load_start"
	EventLoadOK         = "load_ok"
	EventLoadFail       = "load_fail"
	EventUnloadStart    = "unload_start"
	EventUnloadTimeout  = "unload_timeout"
	EventUnloadOK       = "unload_ok"
	EventUnloadFail     = "unload_fail"
	EventGenerateOK     = "generate_ok"
	EventGenerateFail   = "generate_fail"
	EventUsage          = "usage"
	EventReap           = "reap"
	EventPrefetch       = "prefetch"
	EventPrefetchSkip   = "prefetch_skip"
	EventBudgetViolated = "budget_violation"
	EventError          = "error"
)

// EventPublisher receives events from the manager. Implementations must be
// lightweight, non-blocking and must not panic; publishing is fire-and-forget.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans events out to several sinks.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

// reportError forwards a classified failure to the diagnostic sink.
func (m *Manager) reportError(kind Kind, modelID string, err error) {
	m.pub.Publish(Event{
		Name:    EventError,
		ModelID: modelID,
		At:      m.now(),
		Fields:  map[string]any{"kind": string(kind), "message": err.Error()},
	})
}
