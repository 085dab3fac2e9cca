package manager

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"modelmgrd/pkg/types"
)

// Generate produces a completion, loading the model first if needed (load
// failures, including budget rejections, propagate to the caller). When the
// request carries a conversation id, cached per-conversation state seeds the
// runtime call and the refreshed state is written back afterwards. When w is
// non-nil, tokens stream to it as NDJSON lines.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) (types.GenerateResponse, error) {
	id := req.Model
	if id == "" {
		id = m.defaultModel
		if id == "" {
			return types.GenerateResponse{}, ErrModelNotFound("(unspecified)")
		}
	}
	handle, desc, err := m.acquireGeneration(ctx, id)
	if err != nil {
		return types.GenerateResponse{}, err
	}

	var prior []byte
	cacheHit := false
	if m.cache != nil && req.ConversationID != "" {
		prior, cacheHit = m.cache.Get(req.ConversationID, id)
	}

	params := GenParams{
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
		Stop:         req.Stop,
		NThreads:     desc.NThreads,
	}
	var onToken func(string) error
	if w != nil {
		onToken = func(tok string) error {
			if err := writeTokenLine(w, tok); err != nil {
				return err
			}
			if flush != nil {
				flush()
			}
			return nil
		}
	}

	text, next, genErr := handle.Generate(ctx, req.Prompt, params, prior, onToken)
	m.releaseGeneration(id)

	if genErr != nil {
		err := runtimeError{kind: KindRuntimeGeneration, id: id, err: genErr}
		metricGenerationsTotal.WithLabelValues("error").Inc()
		m.pub.Publish(Event{Name: EventGenerateFail, ModelID: id, At: m.now(), Fields: map[string]any{"error": genErr.Error()}})
		m.reportError(KindRuntimeGeneration, id, err)
		return types.GenerateResponse{}, err
	}

	if m.cache != nil && req.ConversationID != "" && next != nil {
		m.cache.Put(req.ConversationID, id, next)
	}
	m.RecordUsage(id)
	metricGenerationsTotal.WithLabelValues("ok").Inc()
	m.pub.Publish(Event{Name: EventGenerateOK, ModelID: id, At: m.now(), Fields: map[string]any{"cache_hit": cacheHit}})

	return types.GenerateResponse{
		Model:          id,
		Text:           text,
		ConversationID: req.ConversationID,
		CacheHit:       cacheHit,
	}, nil
}

// generateAcquireAttempts bounds the reload loop when an unload keeps racing
// the handle acquisition.
const generateAcquireAttempts = 3

// acquireGeneration ensures the model is online and pins its handle by
// bumping the in-flight count, which Unload drains before releasing the
// handle. If the model is unloaded between Load returning and the snapshot,
// the load path is re-entered rather than misreporting a registered model as
// not found.
func (m *Manager) acquireGeneration(ctx context.Context, id string) (ModelHandle, types.ModelDescriptor, error) {
	for attempt := 0; attempt < generateAcquireAttempts; attempt++ {
		if err := m.Load(ctx, id); err != nil {
			return nil, types.ModelDescriptor{}, err
		}
		m.mu.Lock()
		mdl, ok := m.models[id]
		if !ok {
			m.mu.Unlock()
			return nil, types.ModelDescriptor{}, ErrModelNotFound(id)
		}
		if mdl.status == types.StatusOnline {
			mdl.inflight++
			handle := mdl.handle
			desc := mdl.desc
			m.mu.Unlock()
			return handle, desc, nil
		}
		m.mu.Unlock()
	}
	err := ErrRuntime(KindRuntimeGeneration, id, errors.New("model kept unloading before generation could start"))
	m.reportError(KindRuntimeGeneration, id, err)
	return nil, types.ModelDescriptor{}, err
}

// releaseGeneration unpins the handle and wakes any unload draining on it.
func (m *Manager) releaseGeneration(id string) {
	m.mu.Lock()
	if mdl, ok := m.models[id]; ok {
		mdl.inflight--
		mdl.lastUsed = m.now()
	}
	m.cond.Broadcast()
	m.mu.Unlock()
}

// writeTokenLine emits one NDJSON token line.
func writeTokenLine(w io.Writer, tok string) error {
	b, err := json.Marshal(struct {
		Token string `json:"token"`
	}{Token: tok})
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
